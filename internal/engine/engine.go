package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prosearch/prosearch/internal/metrics"
	"github.com/prosearch/prosearch/internal/research"
	"github.com/prosearch/prosearch/internal/streaming"
)

// Phase is the workflow state machine's state.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseGeneratingQueries
	PhaseResearching
	PhaseReflecting
	PhaseFinalizing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseGeneratingQueries:
		return "generating_queries"
	case PhaseResearching:
		return "researching"
	case PhaseReflecting:
		return "reflecting"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage names used in the event stream, one per workflow stage.
const (
	StageGenerateQuery  = "generate_query"
	StageWebResearch    = "web_research"
	StageReflection     = "reflection"
	StageFinalizeAnswer = "finalize_answer"
	StageDone           = "done"
	StageEventError     = "error"
)

// StageError is the terminal error of a failed run: which stage failed,
// and how much partial evidence had been merged before the failure so the
// caller can decide whether a retry is worthwhile.
type StageError struct {
	Stage            string
	Err              error
	PartialSummaries int
	PartialSources   int
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (partial: %d summaries, %d sources): %v",
		e.Stage, e.PartialSummaries, e.PartialSources, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Publisher receives per-stage events as the run progresses.
type Publisher interface {
	Publish(runID string, evt streaming.Event)
}

// Config tunes the engine.
type Config struct {
	// MaxConcurrentBranches bounds one wave's parallel research branches;
	// 0 means unbounded.
	MaxConcurrentBranches int

	// DefaultReasoningModel is used for reflection and finalization when
	// the run input does not name a model.
	DefaultReasoningModel string
}

// Engine drives one research run through the state machine:
// Start → GeneratingQueries → Researching → Reflecting →
// {Researching | Finalizing} → Done, with Failed reachable from any
// stage on unrecoverable error.
type Engine struct {
	generator  *research.Generator
	researcher *research.Researcher
	reflector  *research.Reflector
	finalizer  *research.Finalizer
	events     Publisher
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a workflow engine.
func New(
	generator *research.Generator,
	researcher *research.Researcher,
	reflector *research.Reflector,
	finalizer *research.Finalizer,
	events Publisher,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		generator:  generator,
		researcher: researcher,
		reflector:  reflector,
		finalizer:  finalizer,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// RunInput is the invocation contract for one run.
type RunInput struct {
	RunID             string
	Messages          []Message
	InitialQueryCount int
	MaxLoops          int
	ReasoningModel    string
}

// RunResult is the terminal output of a successful run.
type RunResult struct {
	Answer     research.Answer
	LoopCount  int
	Summaries  int
	FailedWork int // failed branches across all waves
}

// Run executes the full workflow. The state lives for exactly this call;
// cancellation of ctx aborts in-flight branches and returns a StageError
// wrapping context.Canceled.
func (e *Engine) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if in.ReasoningModel == "" {
		in.ReasoningModel = e.cfg.DefaultReasoningModel
	}
	st := NewWorkflowState(in.Messages, in.InitialQueryCount, in.MaxLoops, in.ReasoningModel)
	topic := st.Topic()
	phase := PhaseStart
	runStart := e.now()
	metrics.RunsStarted.Inc()

	e.logger.Info("research run starting",
		zap.String("run_id", in.RunID),
		zap.Int("initial_queries", st.InitialQueryCount),
		zap.Int("max_loops", st.MaxLoops),
		zap.String("reasoning_model", st.ReasoningModel),
	)

	fail := func(stage string, err error) (*RunResult, error) {
		phase = PhaseFailed
		nSum, nSrc := st.Counts()
		serr := &StageError{Stage: stage, Err: err, PartialSummaries: nSum, PartialSources: nSrc}
		e.publish(in.RunID, StageEventError, map[string]interface{}{
			"stage":             stage,
			"error":             err.Error(),
			"partial_summaries": nSum,
			"partial_sources":   nSrc,
		})
		metrics.RunsCompleted.WithLabelValues(statusForErr(err)).Inc()
		e.logger.Error("research run failed",
			zap.String("run_id", in.RunID),
			zap.String("stage", stage),
			zap.String("phase", phase.String()),
			zap.Error(err),
		)
		return nil, serr
	}

	// Start → GeneratingQueries
	phase = PhaseGeneratingQueries
	genStart := e.now()
	queries, err := e.generator.Generate(ctx, topic, st.InitialQueryCount, e.now())
	metrics.StageDuration.WithLabelValues(StageGenerateQuery).Observe(e.now().Sub(genStart).Seconds())
	if err != nil {
		return fail(StageGenerateQuery, err)
	}
	st.AddPending(queries)
	e.publish(in.RunID, StageGenerateQuery, map[string]interface{}{
		"queries": queries,
	})

	// Researching ⇄ Reflecting loop.
	for {
		phase = PhaseResearching
		wave := st.DrainPending()
		waveStart := e.now()
		if err := e.runWave(ctx, in.RunID, st, topic, wave); err != nil {
			return fail(StageWebResearch, err)
		}
		metrics.StageDuration.WithLabelValues(StageWebResearch).Observe(e.now().Sub(waveStart).Seconds())

		// The wave join is a barrier: reflection always runs, even over an
		// empty summary set.
		phase = PhaseReflecting
		reflStart := e.now()
		verdict := e.reflector.Reflect(ctx, topic, st.SnapshotSummaries(), st.ReasoningModel, e.now())
		metrics.StageDuration.WithLabelValues(StageReflection).Observe(e.now().Sub(reflStart).Seconds())
		if ctx.Err() != nil {
			return fail(StageReflection, ctx.Err())
		}

		// Hard ceiling: another loop would exceed MaxLoops, so the model's
		// verdict no longer matters.
		if st.LoopCount+1 > st.MaxLoops {
			verdict.IsSufficient = true
			verdict.FollowUps = nil
		}
		st.IsSufficient = verdict.IsSufficient

		if !verdict.IsSufficient {
			st.LoopCount++
		}
		atCeiling := !verdict.IsSufficient && st.LoopCount >= st.MaxLoops

		e.publish(in.RunID, StageReflection, map[string]interface{}{
			"is_sufficient":     verdict.IsSufficient,
			"knowledge_gap":     verdict.KnowledgeGap,
			"follow_up_queries": verdict.FollowUps,
			"loop_count":        st.LoopCount,
			"failed_branches":   st.FailedBranches,
			"degraded":          verdict.Degraded,
		})

		if verdict.IsSufficient || atCeiling {
			break
		}
		st.AddPending(verdict.FollowUps)
	}
	metrics.ReflectionLoops.Observe(float64(st.LoopCount))

	// Reflecting → Finalizing
	phase = PhaseFinalizing
	finStart := e.now()
	answer, err := e.finalizer.Finalize(ctx, topic, st.SnapshotSummaries(), st.SnapshotSources(), st.ReasoningModel, e.now())
	metrics.StageDuration.WithLabelValues(StageFinalizeAnswer).Observe(e.now().Sub(finStart).Seconds())
	if err != nil {
		return fail(StageFinalizeAnswer, err)
	}
	st.AppendMessage(Message{Role: "assistant", Content: answer.Text})
	e.publish(in.RunID, StageFinalizeAnswer, map[string]interface{}{
		"answer_text":  answer.Text,
		"sources_used": answer.Sources,
	})

	phase = PhaseDone
	e.publish(in.RunID, StageDone, map[string]interface{}{
		"loop_count": st.LoopCount,
		"summaries":  len(st.Summaries),
	})
	metrics.RunsCompleted.WithLabelValues("done").Inc()
	metrics.RunDuration.Observe(e.now().Sub(runStart).Seconds())
	metrics.SourcesResolved.Observe(float64(len(answer.Sources)))

	e.logger.Info("research run complete",
		zap.String("run_id", in.RunID),
		zap.String("phase", phase.String()),
		zap.Int("loops", st.LoopCount),
		zap.Int("summaries", len(st.Summaries)),
		zap.Int("sources", len(answer.Sources)),
	)

	return &RunResult{
		Answer:     answer,
		LoopCount:  st.LoopCount,
		Summaries:  len(st.Summaries),
		FailedWork: st.FailedBranches,
	}, nil
}

// runWave dispatches one research branch per query and waits for all of
// them (join barrier). Branch-local failures are recorded and absorbed;
// only cancellation unwinds the wave.
func (e *Engine) runWave(ctx context.Context, runID string, st *WorkflowState, topic string, wave []research.Query) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrentBranches > 0 {
		g.SetLimit(e.cfg.MaxConcurrentBranches)
	}
	for _, q := range wave {
		q := q
		branch := st.NextBranch()
		metrics.BranchesDispatched.Inc()
		g.Go(func() error {
			sum, err := e.researcher.Research(gctx, topic, q, branch, e.now())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				st.RecordBranchFailure()
				metrics.BranchesFailed.WithLabelValues(branchFailureKind(err)).Inc()
				e.publish(runID, StageWebResearch, map[string]interface{}{
					"query": q.Text,
					"ok":    false,
					"error": err.Error(),
				})
				e.logger.Warn("research branch failed",
					zap.String("run_id", runID),
					zap.String("query", q.Text),
					zap.Error(err),
				)
				return nil
			}
			st.MergeSummary(sum)
			e.publish(runID, StageWebResearch, map[string]interface{}{
				"query":   q.Text,
				"ok":      true,
				"sources": len(sum.Sources),
			})
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) publish(runID, stage string, payload map[string]interface{}) {
	if e.events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("failed to marshal stage event", zap.String("stage", stage), zap.Error(err))
		raw = nil
	}
	e.events.Publish(runID, streaming.Event{Stage: stage, Payload: raw})
}

func branchFailureKind(err error) string {
	var se *research.SearchError
	if errors.As(err, &se) {
		return "search"
	}
	return "summarization"
}

func statusForErr(err error) string {
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "failed"
}
