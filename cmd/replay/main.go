// Command replay reconstructs the order book series for one asset from a
// recorded session file and prints the book at a chosen point.
//
// Usage:
//
//	replay -file sessions/<asset>-<session>.jsonl              # final state
//	replay -file ... -index 3                                  # state after event 3
//	replay -file ... -at 1724680000000                         # state at timestamp (ms)
//	replay -file ... -asset <token_id> -label "Winner | Yes"
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/book"
	"github.com/rickgao/polymarket-data/internal/journal"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/series"
)

func main() {
	file := flag.String("file", "", "path to a recorded session file (JSONL or JSON array)")
	asset := flag.String("asset", "", "asset token ID (optional when the file holds one asset)")
	label := flag.String("label", "", "display label for the book header")
	index := flag.Int("index", -1, "state index to display; negative counts from the end")
	at := flag.Int64("at", 0, "display the state as of this timestamp (unix ms)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "replay: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	events, err := journal.ReadFile(*file)
	if err != nil {
		fatal(err)
	}
	if len(events) == 0 {
		fatal(fmt.Errorf("no events in %s", *file))
	}

	assetID := *asset
	if assetID == "" {
		assetID, err = soleAsset(events)
		if err != nil {
			fatal(err)
		}
	}

	s, err := series.Build(assetID, events)
	if err != nil {
		fatal(err)
	}

	var st book.State
	switch {
	case *at > 0:
		st, err = s.StateAtTime(*at)
	default:
		st, err = s.StateAt(*index)
	}
	if err != nil {
		fatal(err)
	}

	name := *label
	if name == "" {
		name = assetID
	}
	printBook(name, st)
	fmt.Printf("(%d events, %d states)\n", s.Len()-1, s.Len())
}

// soleAsset returns the single asset ID the events reference, or an error
// listing the choices when the file covers more than one.
func soleAsset(events []model.Event) (string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, ev := range events {
		for _, id := range ev.AssetIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no asset IDs found in session")
	case 1:
		return ids[0], nil
	}

	msg := "session holds multiple assets, pass -asset with one of:"
	for _, id := range ids {
		msg += "\n  " + id
	}
	return "", fmt.Errorf("%s", msg)
}

// printBook renders one book state: asks from worst to best, the spread
// and inferred mid price, then bids from best to worst.
func printBook(name string, st book.State) {
	fmt.Printf("UTC: %s\n", time.UnixMilli(st.Timestamp).UTC().Format(time.RFC3339))
	fmt.Printf("===%s===\n", name)
	fmt.Println("TYPE\tPRICE\tSIZE")

	for i := len(st.Asks) - 1; i >= 0; i-- {
		lvl := st.Asks[i]
		fmt.Printf("ASK\t%s\t%s\n", lvl.Price, lvl.Size)
	}

	bestBid, bidErr := st.BestBid()
	bestAsk, askErr := st.BestAsk()
	if bidErr == nil && askErr == nil {
		spread := bestAsk.Price.Sub(bestBid.Price)
		mid := bestAsk.Price.Add(bestBid.Price).Div(decimal.NewFromInt(2))
		fmt.Printf("-----SPREAD: %s  INFERRED PRICE: %s-----\n",
			spread.StringFixed(3), mid.StringFixed(3))
	} else {
		fmt.Println("-----SPREAD: N/A  INFERRED PRICE: N/A-----")
	}

	for i := len(st.Bids) - 1; i >= 0; i-- {
		lvl := st.Bids[i]
		fmt.Printf("BID\t%s\t%s\n", lvl.Price, lvl.Size)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "replay: %v\n", err)
	os.Exit(1)
}
