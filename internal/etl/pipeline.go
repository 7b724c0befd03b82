package etl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/logging"
	"github.com/JonMunkholm/iefreport/internal/metrics"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/google/uuid"
)

// Stage names, used in logs, metrics and wrapped errors.
const (
	StageSchema               = "schema"
	StageExtractEstablishment = "extract_establishments"
	StageExtractPersonnel     = "extract_personnel"
	StageLoadCommunes         = "load_communes"
	StageLoadEstablishments   = "load_establishments"
	StageLoadPersonnel        = "load_personnel"
	StageSummary              = "summary"
)

// StageError is returned when a stage aborts the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("etl stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is what a successful run produced.
type Result struct {
	RunID          uuid.UUID
	Establishments RowStats
	Personnel      RowStats
	Communes       CommuneLoad
	Etablissements EstablishmentLoad
	People         PersonnelLoad
	Summary        Summary
	Duration       time.Duration
}

// Pipeline runs one full reload.
type Pipeline struct {
	db      config.DatabaseConfig
	etl     config.ETLConfig
	metrics *metrics.Metrics
	console *Console
}

// NewPipeline builds a pipeline from configuration. m and out may be nil.
func NewPipeline(db config.DatabaseConfig, etl config.ETLConfig, m *metrics.Metrics, out io.Writer) *Pipeline {
	return &Pipeline{db: db, etl: etl, metrics: m, console: NewConsole(out)}
}

// Run wipes the store, loads both sources and records the run. Any error
// aborts the run; stages that already committed stay committed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New()}
	logger := logging.WithFields(ctx, "run_id", res.RunID.String())
	logger.Info("etl run started",
		"driver", p.db.Driver,
		"establishments_csv", p.etl.EstablishmentsCSV,
		"personnel_csv", p.etl.PersonnelCSV,
	)

	s, err := p.run(ctx, logger, res)
	res.Duration = time.Since(start)

	if s != nil {
		if recErr := p.recordRun(ctx, s, start, res, err); recErr != nil {
			logger.Warn("failed to record etl run", "error", recErr)
		}
		s.Close()
	}
	if p.metrics != nil {
		p.metrics.RecordRun(err == nil)
	}

	if err != nil {
		logger.Error("etl run failed", "error", err, "duration_ms", res.Duration.Milliseconds())
		return nil, err
	}

	logger.Info("etl run completed",
		"communes", res.Summary.Communes,
		"etablissements", res.Summary.Establishments,
		"personnel", res.Summary.Personnel,
		"unmatched", res.People.Unmatched,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) (*store.Store, error) {
	var s *store.Store

	err := p.stage(logger, StageSchema, func() error {
		schema, err := store.LoadSchema(p.etl.SchemaPath, p.db.Driver)
		if err != nil {
			return err
		}
		s, err = store.Initialize(ctx, p.db, schema)
		if err != nil {
			return err
		}
		location := "[MASKED]"
		if p.db.Driver == config.DriverSQLite {
			location = p.db.URL
		}
		p.console.Schema(p.db.Driver, location)
		return nil
	})
	if err != nil {
		return nil, err
	}

	x := Extractor{Encoding: p.etl.Encoding, Placeholder: p.etl.MissingPlaceholder}

	var etabs *EstablishmentBatch
	err = p.stage(logger, StageExtractEstablishment, func() error {
		etabs, err = extractFile(p.etl.EstablishmentsCSV, x.Establishments)
		if err != nil {
			return err
		}
		res.Establishments = etabs.Stats
		if p.metrics != nil {
			p.metrics.RecordExtract("etablissements", etabs.Stats.Read, etabs.Stats.Skipped)
		}
		p.console.Establishments(etabs)
		return nil
	})
	if err != nil {
		return s, err
	}

	var people *PersonnelBatch
	err = p.stage(logger, StageExtractPersonnel, func() error {
		people, err = extractFile(p.etl.PersonnelCSV, x.Personnel)
		if err != nil {
			return err
		}
		res.Personnel = people.Stats
		if p.metrics != nil {
			p.metrics.RecordExtract("personnel", people.Stats.Read, people.Stats.Skipped)
		}
		p.console.Personnel(people)
		return nil
	})
	if err != nil {
		return s, err
	}

	loader := NewLoader(s, p.etl.Department, p.etl.MissingPlaceholder)

	err = p.stage(logger, StageLoadCommunes, func() error {
		res.Communes, err = loader.LoadCommunes(ctx, etabs.Communes)
		if err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.RecordInsert("communes", res.Communes.Lookup.Len())
		}
		p.console.Communes(res.Communes)
		return nil
	})
	if err != nil {
		return s, err
	}

	err = p.stage(logger, StageLoadEstablishments, func() error {
		res.Etablissements, err = loader.LoadEstablishments(ctx, etabs.Records, res.Communes.Lookup)
		if err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.RecordInsert("etablissements", res.Etablissements.Inserted)
		}
		p.console.EstablishmentsLoaded(res.Etablissements)
		return nil
	})
	if err != nil {
		return s, err
	}

	err = p.stage(logger, StageLoadPersonnel, func() error {
		res.People, err = loader.LoadPersonnel(ctx, people.Records, res.Etablissements.Lookup)
		if err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.RecordInsert("personnel", res.People.Inserted)
			p.metrics.RecordUnmatched(res.People.Unmatched)
		}
		if res.People.Unmatched > 0 {
			logger.Warn("personnel with unknown establishment", "count", res.People.Unmatched)
		}
		p.console.PersonnelLoaded(res.People)
		return nil
	})
	if err != nil {
		return s, err
	}

	err = p.stage(logger, StageSummary, func() error {
		res.Summary, err = Summarize(ctx, s.DB)
		if err != nil {
			return err
		}
		p.console.Summary(res.Summary)
		return nil
	})
	return s, err
}

// stage times fn and wraps its error with the stage name.
func (p *Pipeline) stage(logger *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.ObserveStage(name, elapsed)
	}
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}

	logger.Debug("stage completed", "stage", name, "duration_ms", elapsed.Milliseconds())
	return nil
}

// extractFile opens path and hands it to extract.
func extractFile[T any](path string, extract func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return extract(f)
}

// recordRun appends the run to etl_runs. Failures here never fail the run.
func (p *Pipeline) recordRun(ctx context.Context, s *store.Store, start time.Time, res *Result, runErr error) error {
	if err := s.EnsureRunsTable(ctx); err != nil {
		return err
	}

	status, msg := "success", ""
	if runErr != nil {
		status, msg = "failure", runErr.Error()
	}

	_, err := s.DB.ExecContext(ctx, s.Rebind(`INSERT INTO etl_runs
    (run_id, started_at, finished_at, status, communes, etablissements, personnel, unmatched, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		res.RunID.String(), start.UTC(), time.Now().UTC(), status,
		res.Summary.Communes, res.Summary.Establishments, res.Summary.Personnel, res.People.Unmatched,
		optional(msg),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", store.Translate(err))
	}
	return nil
}
