package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/poiesic/askit"
	"github.com/poiesic/askit/ingestion"
	"github.com/poiesic/askit/storage"
)

type seedDocument struct {
	source string
	tag    string
	body   []string
}

var corpus = []seedDocument{
	{
		source: "kb://handbook/remote-work.md",
		body: []string{
			"Remote work is the default arrangement. Core collaboration hours run from 10:00 to 15:00 in your team's anchor timezone, and everything else is yours to schedule.",
			"Every employee receives a one-time home office stipend of 800 EUR, renewable after three years. Keep receipts; finance will ask for them exactly once, at the worst possible moment.",
			"Company-wide meetings are recorded and posted to the intranet within a day. Attendance is never taken, but the quiz at the quarterly all-hands is real.",
		},
	},
	{
		source: "kb://handbook/expenses.md",
		body: []string{
			"Expenses under 50 EUR need no pre-approval. File them within thirty days through the travel portal, attaching a photo of the receipt.",
			"Flights are booked economy by default. Upgrades come out of your own pocket unless the flight exceeds eight hours.",
			"Team events are budgeted at 60 EUR per person per quarter. Unspent budget does not roll over, which explains the December restaurant rush.",
		},
	},
	{
		source: "kb://eng/oncall-runbook.md",
		tag:    "eng",
		body: []string{
			"The on-call rotation is weekly, Monday 09:00 to Monday 09:00. Handover happens in the sync meeting; unresolved incidents transfer with a written summary, not a verbal one.",
			"Page acknowledgement is expected within ten minutes. If the primary does not acknowledge, the secondary is paged, then the engineering manager.",
			"Sev1 incidents require an incident channel, a scribe, and a status page update within twenty minutes of detection.",
			"Postmortems are blameless and due within five working days. Action items without owners are not action items.",
		},
	},
	{
		source: "kb://eng/tidal-telemetry.md",
		tag:    "eng",
		body: []string{
			"The tidal array streams turbine telemetry every two seconds over MQTT. Gaps longer than one minute trigger a gap-fill job against the historian database.",
			"Maintenance windows are scheduled around slack tide, when rotor load is lowest. The scheduler publishes candidate windows fourteen days ahead.",
			"Blade strain sensors drift with water temperature. Recalibration runs nightly, and readings taken during recalibration carry a quality flag of B.",
			"Export cables are monitored for partial discharge. Two consecutive alarms on the same phase escalate directly to the marine operations desk.",
		},
	},
	{
		source: "kb://eng/reindex-playbook.md",
		tag:    "eng",
		body: []string{
			"Swapping the embedding model requires a full reindex. Run it from a maintenance host with the database closed to writers; the job is resumable but not concurrent-safe.",
			"Budget roughly one hour per million segments on the standard embedding host. Progress is reported on stderr and the job can be watched from the ops dashboard.",
			"After a reindex, spot-check retrieval with ten known queries from the regression sheet before reopening writes.",
		},
	},
	{
		source: "kb://hr/compensation.md",
		tag:    "hr",
		body: []string{
			"Salary bands are reviewed every April against market data from two external benchmarks. Bands move; individual salaries never move down.",
			"Promotion packets are due six weeks before the review cycle closes. A packet needs two peer endorsements and one cross-team endorsement.",
			"Equity refreshes vest quarterly over four years with no cliff. Leavers keep vested shares for ninety days.",
		},
	},
	{
		source: "kb://sales/pricing.md",
		tag:    "sales",
		body: []string{
			"List pricing is per seat per month, billed annually. The starter tier is self-serve; team and enterprise tiers route through sales.",
			"Account executives may discount up to 15 percent on their own authority. Anything deeper needs regional director sign-off logged in the CRM.",
			"Pilot programs run sixty days at half price for up to 50 seats. One extension is allowed, after which the pilot converts or closes.",
		},
	},
	{
		source: "kb://sales/renewals.md",
		tag:    "sales",
		body: []string{
			"Renewal conversations start one hundred twenty days before contract end. The health score in the CRM drives which playbook applies.",
			"Churn risk accounts get an executive sponsor call within two weeks of flagging. Document the outcome even when the call does not happen.",
			"Multi-year renewals carry a price lock. Single-year renewals reprice to the current list at most once per contract anniversary.",
		},
	},
}

var dbPath = flag.String("db", "./askit_db", "path to the database directory")

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func main() {
	engine, err := askit.Open(*dbPath)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()
	for _, doc := range corpus {
		input := ingestion.DocumentInput{
			Source:        doc.source,
			PermissionTag: doc.tag,
		}
		for _, paragraph := range doc.body {
			input.Segments = append(input.Segments, ingestion.SegmentInput{Content: paragraph})
		}

		stored, err := engine.Ingest(ctx, input)
		if err != nil {
			// Rerunning the seeder against an existing database is fine
			if errors.Is(err, storage.ErrDuplicateKey) {
				slog.Info("already seeded", "source", doc.source)
				continue
			}
			panic(err)
		}
		slog.Info("seeded", "source", doc.source, "id", stored.Id, "segments", len(input.Segments))
	}

	// Let queued embedding work finish before the engine closes
	engine.Wait()
}
