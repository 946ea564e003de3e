package extract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/classify"
	"github.com/krelborne/wowloot/pkg/filter"
	"github.com/krelborne/wowloot/pkg/listview"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/krelborne/wowloot/pkg/sqlgen"
	"github.com/krelborne/wowloot/pkg/storage"
	"github.com/krelborne/wowloot/pkg/wowhead"
)

// Target names one page to extract.
type Target struct {
	Kind loot.Kind
	ID   int
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d", t.Kind, t.ID)
}

// Result holds the outcome of extracting a single target.
type Result struct {
	Kind       loot.Kind
	TargetID   int
	TargetName string

	// Entries is the final classified, filtered loot table backing SQL.
	Entries []loot.Entry
	SQL     string

	// Warnings are non-fatal problems hit along the way (enrichment
	// fetches that fell back to listing data, ledger write failures).
	Warnings []string

	// Changes is what the run ledger reported, when one is attached.
	Changes []storage.Change
}

// Extractor runs the extraction pipeline: fetch page, parse the embedded
// datasets, classify entries, apply exclusions and render SQL. Ledger is
// optional; when set, every run is reconciled against it.
type Extractor struct {
	Client *wowhead.Client
	Config loot.Config
	Rules  filter.Rules
	Ledger *storage.DB
}

// Run extracts the loot table of one target.
func (x *Extractor) Run(ctx context.Context, kind loot.Kind, id int) (*Result, error) {
	page, err := x.Client.FetchPage(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	entries, err := listview.ParseEntries(page.Body, kind, x.Config)
	if err != nil {
		return nil, fmt.Errorf("parse %s %d: %w", kind, id, err)
	}

	entries, warnings := classify.Classify(ctx, entries, x.Client.FetchItemInfo, x.Config)
	entries = filter.Apply(entries, x.Rules)

	name := wowhead.PageName(page.Body)
	if name == "" {
		name = strconv.Itoa(id)
	}

	res := &Result{
		Kind:       kind,
		TargetID:   id,
		TargetName: name,
		Entries:    entries,
		SQL:        sqlgen.Render(kind, id, name, entries, x.Config),
		Warnings:   warnings,
	}

	if x.Ledger != nil {
		changes, lerr := x.Ledger.RecordRun(ctx, kind, id, name, entries)
		if lerr != nil {
			utils.Log.Warnf("Failed to record %s %d in ledger: %v", kind, id, lerr)
			res.Warnings = append(res.Warnings, fmt.Sprintf("ledger: %v", lerr))
		} else {
			res.Changes = changes
		}
	}

	return res, nil
}

// RunBatch extracts every target in order, one at a time so the shared
// client's pacing applies across the whole batch. A failed target is
// logged and skipped; the remaining targets still run.
func (x *Extractor) RunBatch(ctx context.Context, targets []Target) ([]*Result, []error) {
	var results []*Result
	var errs []error
	for _, t := range targets {
		utils.Log.Infof("Extracting loot for %s %d", t.Kind, t.ID)
		res, err := x.Run(ctx, t.Kind, t.ID)
		if err != nil {
			utils.Log.Errorf("Extraction failed for %s %d: %v", t.Kind, t.ID, err)
			errs = append(errs, fmt.Errorf("%s %d: %w", t.Kind, t.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}
