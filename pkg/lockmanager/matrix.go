package lockmanager

import "latchkv/pkg/txn"

// compatible reports whether a transaction holding grantedMode may
// coexist with another transaction requesting requestedMode on the
// same resource.
func compatible(requested, granted txn.LockMode) bool {
	return compatibilityMatrix[requested][granted]
}

var compatibilityMatrix = map[txn.LockMode]map[txn.LockMode]bool{
	txn.IntentionShared: {
		txn.IntentionShared: true, txn.IntentionExclusive: true,
		txn.Shared: true, txn.SharedIntentionExclusive: true, txn.Exclusive: false,
	},
	txn.IntentionExclusive: {
		txn.IntentionShared: true, txn.IntentionExclusive: true,
		txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false,
	},
	txn.Shared: {
		txn.IntentionShared: true, txn.IntentionExclusive: false,
		txn.Shared: true, txn.SharedIntentionExclusive: false, txn.Exclusive: false,
	},
	txn.SharedIntentionExclusive: {
		txn.IntentionShared: true, txn.IntentionExclusive: false,
		txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false,
	},
	txn.Exclusive: {
		txn.IntentionShared: false, txn.IntentionExclusive: false,
		txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false,
	},
}

// upgradeAllowed reports whether a transaction holding curr may
// upgrade directly to next.
func upgradeAllowed(curr, next txn.LockMode) bool {
	allowed, ok := upgradeMatrix[curr]
	if !ok {
		return false
	}
	for _, m := range allowed {
		if m == next {
			return true
		}
	}
	return false
}

var upgradeMatrix = map[txn.LockMode][]txn.LockMode{
	txn.IntentionShared:          {txn.Shared, txn.Exclusive, txn.IntentionExclusive, txn.SharedIntentionExclusive},
	txn.Shared:                   {txn.Exclusive, txn.SharedIntentionExclusive},
	txn.IntentionExclusive:       {txn.Exclusive, txn.SharedIntentionExclusive},
	txn.SharedIntentionExclusive: {txn.Exclusive},
}

// tableModeCompatibleWithRow reports whether holding a table lock of
// tableMode satisfies the prerequisite for taking a row lock of
// rowMode on that table.
func tableModeCompatibleWithRow(tableMode, rowMode txn.LockMode) bool {
	if rowMode == txn.Exclusive {
		return tableMode == txn.Exclusive || tableMode == txn.IntentionExclusive || tableMode == txn.SharedIntentionExclusive
	}
	// rowMode == Shared: any table lock at all suffices.
	return true
}
