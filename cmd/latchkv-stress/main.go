// Command latchkv-stress drives a table with a workload file split
// across n concurrent workers, each running its own transaction per
// line, to exercise the lock manager's deadlock detector and the
// B+Tree's latch-crabbing under real contention.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"latchkv/pkg/database"
	"latchkv/pkg/rid"
	"latchkv/pkg/txn"
)

var startupDelay = 100 * time.Millisecond
var maxJitterMillis int64 = 10

// setupCloseHandler closes db on SIGINT/SIGTERM so the header page and
// any dirty frames get flushed before the process exits.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(maxJitterMillis)+1) * time.Millisecond
}

// parseWorkload reads one line per operation: "insert <key> <value>",
// "get <key>", or "delete <key>".
func parseWorkload(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var workload []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		workload = append(workload, line)
	}
	return workload, scanner.Err()
}

// applyLine runs one workload operation inside its own transaction,
// committing on success and aborting on any error other than a
// not-found lookup.
func applyLine(db *database.Database, table, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("malformed workload line %q", line)
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad key in %q: %w", line, err)
	}

	t := db.Begin(txn.RepeatableRead)
	switch fields[0] {
	case "insert":
		if len(fields) < 3 {
			db.Abort(t)
			return fmt.Errorf("insert missing value in %q", line)
		}
		page, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil {
			db.Abort(t)
			return fmt.Errorf("bad value in %q: %w", line, err)
		}
		if err := db.Insert(t, table, key, rid.New(int32(page), 0)); err != nil {
			db.Abort(t)
			return err
		}
	case "get":
		if _, _, err := db.Get(t, table, key); err != nil {
			db.Abort(t)
			return err
		}
	case "delete":
		if err := db.Delete(t, table, key); err != nil {
			db.Abort(t)
			return err
		}
	default:
		db.Abort(t)
		return fmt.Errorf("unknown operation %q", fields[0])
	}
	db.Commit(t)
	return nil
}

// runWorker applies every i-th line of the workload, starting at idx,
// sleeping a random jitter between operations to spread out contention
// instead of lockstepping every worker on the same line.
func runWorker(db *database.Database, table string, workload []string, idx, stride int) error {
	for i := idx; i < len(workload); i += stride {
		time.Sleep(jitter())
		if err := applyLine(db, table, workload[i]); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}

func main() {
	tableFlag := flag.String("table", "stress", "table name to create and drive")
	workloadFlag := flag.String("workload", "", "workload file (required)")
	nFlag := flag.Int("n", 4, "number of concurrent workers")
	dataDirFlag := flag.String("data", "data", "database directory")
	flag.Parse()

	if *workloadFlag == "" {
		fmt.Println("no workload file given")
		return
	}

	db, err := database.Open(*dataDirFlag)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	setupCloseHandler(db)

	if _, err := db.CreateTable(*tableFlag); err != nil {
		panic(err)
	}

	workload, err := parseWorkload(*workloadFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	time.Sleep(startupDelay)

	var g errgroup.Group
	for i := 0; i < *nFlag; i++ {
		idx := i
		g.Go(func() error {
			return runWorker(db, *tableFlag, workload, idx, *nFlag)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Println("workload error:", err)
	}
}
