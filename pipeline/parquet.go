package pipeline

import (
	"math"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/trainingload/training"
)

type sampleParquetRow struct {
	TS           int64   `parquet:"name=t_s, type=INT64"`
	PowerW       float64 `parquet:"name=power_w, type=DOUBLE"`
	HRBPM        float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	PaceMPS      float64 `parquet:"name=pace_mps, type=DOUBLE"`
	Cadence      float64 `parquet:"name=cadence, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	Lat          float64 `parquet:"name=lat, type=DOUBLE"`
	Lon          float64 `parquet:"name=lon, type=DOUBLE"`
	TemperatureC float64 `parquet:"name=temperature_c, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	ValidPower   bool    `parquet:"name=valid_power, type=BOOLEAN"`
	ValidHR      bool    `parquet:"name=valid_hr, type=BOOLEAN"`
}

type dailyParquetRow struct {
	MetricDate string  `parquet:"name=metric_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TSS        float64 `parquet:"name=tss, type=DOUBLE"`
	ATL        float64 `parquet:"name=atl, type=DOUBLE"`
	CTL        float64 `parquet:"name=ctl, type=DOUBLE"`
	TSB        float64 `parquet:"name=tsb, type=DOUBLE"`
	RHR        float64 `parquet:"name=rhr, type=DOUBLE"`
	HRV        float64 `parquet:"name=hrv, type=DOUBLE"`
	SleepScore float64 `parquet:"name=sleep_score, type=DOUBLE"`
	SleepMin   float64 `parquet:"name=sleep_duration_min, type=DOUBLE"`
	RPE        float64 `parquet:"name=rpe, type=DOUBLE"`
}

func writeSamplesParquet(path string, samples []training.Sample) error {
	rows := make([]sampleParquetRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, sampleParquetRow{
			TS:           int64(s.TS),
			PowerW:       intOrNaN(s.PowerW),
			HRBPM:        intOrNaN(s.HRBPM),
			PaceMPS:      valueOrNaN(s.PaceMPS),
			Cadence:      intOrNaN(s.Cadence),
			AltitudeM:    valueOrNaN(s.AltitudeM),
			Lat:          valueOrNaN(s.Lat),
			Lon:          valueOrNaN(s.Lon),
			TemperatureC: valueOrNaN(s.TemperatureC),
			DistanceM:    valueOrNaN(s.DistanceM),
			ValidPower:   s.PowerW != nil,
			ValidHR:      s.HRBPM != nil,
		})
	}
	return writeParquet(path, new(sampleParquetRow), rows)
}

func writeDailyParquet(path string, series []training.MetricsDaily) error {
	rows := make([]dailyParquetRow, 0, len(series))
	for _, m := range series {
		rows = append(rows, dailyParquetRow{
			MetricDate: m.MetricDate.String(),
			TSS:        m.TSS,
			ATL:        m.ATL,
			CTL:        m.CTL,
			TSB:        m.TSB,
			RHR:        intOrNaN(m.RHR),
			HRV:        valueOrNaN(m.HRV),
			SleepScore: valueOrNaN(m.SleepScore),
			SleepMin:   intOrNaN(m.SleepDurationMin),
			RPE:        intOrNaN(m.RPE),
		})
	}
	return writeParquet(path, new(dailyParquetRow), rows)
}

func writeParquet[T any](path string, schema *T, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, schema, 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func intOrNaN(v *int) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}
