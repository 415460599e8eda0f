package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// GenerateOptions configures remediation sheet generation.
type GenerateOptions struct {
	Period model.Period
}

// Packet is one per-source raw-capture fill-in sheet. FileName is a
// deterministic slug of (source, period), so regenerating against an
// unchanged gap queue produces identical names.
type Packet struct {
	FileName string              `json:"file_name"`
	SourceID string              `json:"sanction_source_id"`
	Row      model.RawCaptureRow `json:"row"`
}

// GenerateResult holds both remediation output shapes: per-pair apply
// fill-in rows and per-source raw-capture packets.
type GenerateResult struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Status      model.Health     `json:"status"`
	Totals      GenerateTotals   `json:"totals"`
	Checks      map[string]bool  `json:"checks"`
	ApplyRows   []model.ApplyRow `json:"apply_rows"`
	Packets     []Packet         `json:"packets"`
}

// GenerateTotals counts the generated remediation artifacts.
type GenerateTotals struct {
	ActionablePairsTotal int `json:"actionable_pairs_total"`
	ApplyRowsTotal       int `json:"apply_rows_total"`
	PacketsTotal         int `json:"packets_total"`
	SourcesMissingTotal  int `json:"sources_missing_total"`
}

// Generate classifies the gap queue and turns every actionable pair whose
// source is registered into (a) one pre-filled apply row and (b) a
// contribution to its source's raw-capture packet.
func Generate(ctx context.Context, st store.Store, cfg config.ReconcileConfig, opts GenerateOptions) (*GenerateResult, error) {
	log := zap.L().With(zap.String("component", "reconcile.generator"))

	gaps, err := GapQueue(ctx, st, cfg, GapOptions{Period: opts.Period})
	if err != nil {
		return nil, eris.Wrap(err, "generator: classify gaps")
	}

	result := &GenerateResult{
		GeneratedAt: time.Now().UTC(),
		Status:      gaps.Status,
		Checks: map[string]bool{
			"catalog_sources_present": gaps.Checks["catalog_sources_present"],
			"kpi_definitions_present": gaps.Checks["kpi_definitions_present"],
		},
	}
	if gaps.Status == model.HealthFailed {
		result.Checks["actionable_pairs_present"] = false
		return result, nil
	}

	catalog, err := store.LoadCatalog(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "generator: load catalog")
	}
	metrics, err := st.ListMetrics(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "generator: list metrics")
	}
	coverage := coverageBySource(catalog, metrics)

	packetBySource := make(map[string]*Packet)
	var packetOrder []string

	for _, row := range gaps.QueueRows {
		if row.Status == model.StatusMissingSource {
			result.Totals.SourcesMissingTotal++
			continue
		}
		result.Totals.ActionablePairsTotal++

		// metric_key stays blank: the validator derives it from the
		// natural-key columns once the period has been filled in.
		result.ApplyRows = append(result.ApplyRows, model.ApplyRow{
			SanctionSourceID:  row.SanctionSourceID,
			KPIID:             row.KPIID,
			PeriodDate:        row.PeriodDate,
			PeriodGranularity: row.PeriodGranularity,
			SourceURL:         row.SourceURL,
		})

		if _, ok := packetBySource[row.SanctionSourceID]; !ok {
			src := catalog.Source(row.SanctionSourceID)
			cov := coverage[row.SanctionSourceID]
			packetBySource[row.SanctionSourceID] = &Packet{
				FileName: PacketFileName(row.SanctionSourceID, row.PeriodDate, row.PeriodGranularity),
				SourceID: row.SanctionSourceID,
				Row: model.RawCaptureRow{
					SanctionSourceID:  row.SanctionSourceID,
					PeriodDate:        row.PeriodDate,
					PeriodGranularity: row.PeriodGranularity,
					SourceURL:         src.URL,
					SourceLabel:       src.Label,
					Organismo:         src.Organismo,
					ExpectedMetrics:   src.ExpectedMetricsJoined(),
					KPIsExpected:      strconv.Itoa(len(catalog.KPIs)),
					KPIsCoveredTotal:  strconv.Itoa(cov.kpisCovered),
					MetricRowsTotal:   strconv.Itoa(cov.metricRows),
				},
			}
			packetOrder = append(packetOrder, row.SanctionSourceID)
		}
	}

	for _, id := range packetOrder {
		result.Packets = append(result.Packets, *packetBySource[id])
	}
	result.Totals.ApplyRowsTotal = len(result.ApplyRows)
	result.Totals.PacketsTotal = len(result.Packets)
	result.Checks["actionable_pairs_present"] = result.Totals.ActionablePairsTotal > 0

	log.Debug("remediation sheets generated",
		zap.Int("apply_rows", result.Totals.ApplyRowsTotal),
		zap.Int("packets", result.Totals.PacketsTotal),
	)
	return result, nil
}

type sourceCoverage struct {
	kpisCovered int
	metricRows  int
}

// coverageBySource counts captured metric rows and distinct covered KPIs per
// registered source, for the read-only packet metadata columns.
func coverageBySource(catalog *model.Catalog, metrics []model.MetricRecord) map[string]sourceCoverage {
	kpisSeen := make(map[string]map[string]bool)
	rows := make(map[string]int)
	for _, m := range metrics {
		if catalog.Source(m.SanctionSourceID) == nil {
			continue
		}
		rows[m.SanctionSourceID]++
		if kpisSeen[m.SanctionSourceID] == nil {
			kpisSeen[m.SanctionSourceID] = make(map[string]bool)
		}
		kpisSeen[m.SanctionSourceID][m.KPIID] = true
	}

	out := make(map[string]sourceCoverage, len(rows))
	for id, n := range rows {
		out[id] = sourceCoverage{kpisCovered: len(kpisSeen[id]), metricRows: n}
	}
	return out
}

// PacketFileName renders the deterministic packet name for a source and
// period. An empty period date renders as "all".
func PacketFileName(sourceID, periodDate, granularity string) string {
	date := periodDate
	if date == "" {
		date = "all"
	}
	return fmt.Sprintf("raw_capture_%s_%s_%s.csv", Slug(sourceID), Slug(date), Slug(granularity))
}

var slugStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug lowercases s, strips diacritics (Spanish source ids carry accents),
// and replaces every non-alphanumeric run with a single underscore.
func Slug(s string) string {
	stripped, _, err := transform.String(slugStripper, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
