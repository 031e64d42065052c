// Package displayreceipt delivers display receipts from a short-lived notification process.
//
// Each call to Pipeline.Process runs one invocation:
//
//	idle -> check_opt_out -> send_current -> flush_backlog -> done
//
// An opted-out user short-circuits to done with no cache writes and no network calls. Otherwise
// the receipt carried by the notification is sent once. A transient failure caches it for a
// later invocation, a permanent failure discards it. The cached backlog is then flushed oldest
// first, skipping the entry written by this run.
//
// The host may kill the process at any time. TimeWillExpire resolves pending completions at
// once, stops the flush loop from starting new sends, and caches a receipt whose send is still
// in flight. Nothing is cancelled by force: a response that arrives afterwards is still honored.
//
// Basic usage:
//
//	store, _ := receiptcache.NewLocalStore(filepath.Join(appGroup, receipt.DefaultCacheDirectory))
//	sender, _ := receiptsender.New(endpoint, receiptsender.WithExtensionVersion(build))
//
//	p, err := displayreceipt.New(store, sender,
//	    displayreceipt.WithOptOut(optout.NewFile(filepath.Join(appGroup, "preferences.yaml"))),
//	    displayreceipt.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//
//	content, err = p.Process(ctx, content).Await()
//
// Or build everything from the environment with LoadConfig and NewFromConfig.
package displayreceipt
