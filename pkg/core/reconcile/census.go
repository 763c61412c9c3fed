package reconcile

import (
	"github.com/shopspring/decimal"

	"snf_underwriting/pkg/models"
)

// =============================================================================
// CENSUS CORRECTIONS
// =============================================================================

// SeriesBeds returns the first known bed count in a month-sorted census series.
func SeriesBeds(records []models.MonthlyCensusRecord) *float64 {
	for i := range records {
		if records[i].TotalBeds != nil {
			return records[i].TotalBeds
		}
	}
	return nil
}

// CorrectCensus applies the census heuristics in order:
//
//	(a) occupancy unknown, ADC and own beds known: occupancy = round(adc/beds*10000)/100
//	(b) occupancy still unknown, 0 < ADC <= 100 and ADC > seriesBeds: the ADC value is a
//	    misplaced occupancy percentage, so it moves into occupancy and ADC becomes unknown.
//
// It reports whether the record changed.
func CorrectCensus(r *models.MonthlyCensusRecord, seriesBeds *float64) bool {
	occ, adc, changed := correct(r.OccupancyPercentage, r.AverageDailyCensus, r.TotalBeds, seriesBeds)
	r.OccupancyPercentage, r.AverageDailyCensus = occ, adc
	return changed
}

func correct(occ, adc, beds, seriesBeds *float64) (*float64, *float64, bool) {
	changed := false
	if occ == nil && adc != nil && beds != nil && *beds > 0 {
		occ = models.Float(occupancyFromCensus(*adc, *beds))
		changed = true
	}
	if occ == nil && adc != nil && *adc > 0 && *adc <= 100 && seriesBeds != nil && *adc > *seriesBeds {
		occ, adc = adc, nil
		changed = true
	}
	return occ, adc, changed
}

// occupancyFromCensus is round(adc/beds*10000)/100.
func occupancyFromCensus(adc, beds float64) float64 {
	return decimal.NewFromFloat(adc).
		Div(decimal.NewFromFloat(beds)).
		Mul(decimal.NewFromInt(10000)).
		Round(0).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

// =============================================================================
// CENSUS SUMMARY
// =============================================================================

// SummarizeCensus rolls the latest twelve months of census into one record: most recent
// known beds, mean ADC and occupancy over months that have them, summed days, admissions and
// discharges. Payer percentages come from days when total and payer days are known,
// otherwise from the mean of the stated percentages.
func SummarizeCensus(records []models.MonthlyCensusRecord) *models.CensusSummary {
	if len(records) == 0 {
		return nil
	}
	window := latest(records, func(r *models.MonthlyCensusRecord) string { return r.Month }, TTMMonths)
	field := func(name string) models.Field[models.MonthlyCensusRecord] {
		for _, f := range models.CensusFields {
			if f.Name == name {
				return f
			}
		}
		panic("reconcile: unknown census field " + name)
	}

	s := &models.CensusSummary{
		PeriodStart:    window[len(window)-1].Month,
		PeriodEnd:      window[0].Month,
		MonthsIncluded: len(window),
		TotalBeds:      SeriesBeds(window), // window is newest first
	}
	s.AverageDailyCensus = mean(window, field("average_daily_census"))
	s.OccupancyPercentage = mean(window, field("occupancy_percentage"))
	s.TotalCensusDays = SumField(window, field("total_census_days"))
	s.MedicaidDays = SumField(window, field("medicaid_days"))
	s.MedicareDays = SumField(window, field("medicare_days"))
	s.PrivatePayDays = SumField(window, field("private_pay_days"))
	s.OtherPayerDays = SumField(window, field("other_payer_days"))
	s.Admissions = SumField(window, field("admissions"))
	s.Discharges = SumField(window, field("discharges"))

	s.MedicaidPercentage = payerShare(s.MedicaidDays, s.TotalCensusDays, mean(window, field("medicaid_percentage")))
	s.MedicarePercentage = payerShare(s.MedicareDays, s.TotalCensusDays, mean(window, field("medicare_percentage")))
	s.PrivatePayPercentage = payerShare(s.PrivatePayDays, s.TotalCensusDays, mean(window, field("private_pay_percentage")))
	s.OtherPayerPercentage = payerShare(s.OtherPayerDays, s.TotalCensusDays, nil)

	s.OccupancyPercentage, s.AverageDailyCensus, _ = correct(s.OccupancyPercentage, s.AverageDailyCensus, s.TotalBeds, s.TotalBeds)
	return s
}

func mean[T any](records []T, f models.Field[T]) *float64 {
	total := decimal.Zero
	n := 0
	for i := range records {
		if v := f.Get(&records[i]); v != nil {
			total = total.Add(decimal.NewFromFloat(*v))
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Float(total.Div(decimal.NewFromInt(int64(n))).Round(2).InexactFloat64())
}

func payerShare(days, totalDays, fallback *float64) *float64 {
	if days != nil && totalDays != nil && *totalDays > 0 {
		return models.Float(decimal.NewFromFloat(*days).
			Div(decimal.NewFromFloat(*totalDays)).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64())
	}
	return fallback
}
