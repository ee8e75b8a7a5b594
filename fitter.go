package normflow

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/sky-flux/normflow/optim"
)

// CheckpointConfig controls printing and snapshotting during training. It
// persists across Fit calls on the same Fitter.
type CheckpointConfig struct {
	Display        bool   `json:"display"`          // emit status lines through the model's logger
	PrintStride    int    `json:"print_stride"`     // evaluate every this many epochs
	PrintBatchSize int    `json:"print_batch_size"` // total evaluation batch across all ranks
	SnapshotPath   string `json:"snapshot_path"`    // empty → no snapshots
	EpochsRun      int    `json:"epochs_run"`       // completed epochs from prior runs; accumulates, never resets
}

// CheckpointOverrides selectively overrides CheckpointConfig fields; nil
// fields keep their previous values.
type CheckpointOverrides struct {
	Display        *bool
	PrintStride    *int
	PrintBatchSize *int
	SnapshotPath   *string
}

// merged returns a new config with the overrides applied.
func (c CheckpointConfig) merged(o *CheckpointOverrides) CheckpointConfig {
	if o == nil {
		return c
	}
	if o.Display != nil {
		c.Display = *o.Display
	}
	if o.PrintStride != nil {
		c.PrintStride = *o.PrintStride
	}
	if o.PrintBatchSize != nil {
		c.PrintBatchSize = *o.PrintBatchSize
	}
	if o.SnapshotPath != nil {
		c.SnapshotPath = *o.SnapshotPath
	}
	return c
}

// OptimizerFunc constructs an optimizer over the given parameter groups.
type OptimizerFunc func(groups []optim.ParamGroup, hp optim.Hyperparams) optim.Optimizer

// SchedulerFunc constructs a learning-rate scheduler bound to an optimizer.
type SchedulerFunc func(o optim.Optimizer) optim.Scheduler

// FitConfig configures one Fit invocation.
// Zero values receive defaults: BatchSize=64, SaveEvery=Epochs (save once at
// the end), AdamW optimizer, no scheduler, mean-KL loss. Epochs=0 builds the
// optimizer and scheduler without running the training loop.
type FitConfig struct {
	Epochs    int `json:"epochs"`
	SaveEvery int `json:"save_every"`
	BatchSize int `json:"batch_size"`

	NewOptimizer OptimizerFunc
	NewScheduler SchedulerFunc
	Loss         LossFunc

	// Hyperparams is merged key-wise into the Fitter's persistent
	// hyperparameters; unspecified keys keep their previous values.
	Hyperparams optim.Hyperparams

	// Checkpoint is merged field-wise into the Fitter's persistent
	// checkpoint configuration.
	Checkpoint *CheckpointOverrides
}

// gradEps is the central-difference step for numerical gradients.
const gradEps = 1e-5

// Fitter trains a Model's flow network by stochastic gradient descent on a
// loss over proposal/target log-densities. Gradients are computed via
// numerical central differences on the flow's flat parameter vector, with
// the prior batch held fixed within each step.
type Fitter struct {
	model *Model

	// TrainBatchSize is the batch size of the most recent Fit call.
	TrainBatchSize int

	// History holds the diagnostics recorded on the coordinating rank.
	History TrainHistory

	runID       string
	hyperparams optim.Hyperparams
	checkpoint  CheckpointConfig

	lossFn    LossFunc
	optimizer optim.Optimizer
	scheduler optim.Scheduler

	printedHeader bool
}

func newFitter(m *Model) *Fitter {
	return &Fitter{
		model:          m,
		TrainBatchSize: 1,
		runID:          uuid.NewString(),
		hyperparams: optim.Hyperparams{
			"lr":           optim.DefaultLR,
			"weight_decay": optim.DefaultWeightDecay,
		},
		checkpoint: CheckpointConfig{
			PrintStride:    10,
			PrintBatchSize: 1024,
		},
	}
}

// Hyperparams returns a copy of the persistent hyperparameters.
func (f *Fitter) Hyperparams() optim.Hyperparams {
	return f.hyperparams.Merge(nil)
}

// Checkpoint returns the current persistent checkpoint configuration.
func (f *Fitter) Checkpoint() CheckpointConfig {
	return f.checkpoint
}

// Fit trains the model.
//
// Overrides in cfg are merged into the Fitter's persistent state first. If a
// snapshot path is configured and a file exists there, the flow parameters
// and cumulative epoch count are restored from it before training; a present
// but malformed or incompatible snapshot fails with ErrSnapshotLoad. The
// optimizer is then built over the flow's parameters (preferring the grouped
// view when the flow exposes one) and, for a positive epoch count, the
// training loop runs.
func (f *Fitter) Fit(cfg FitConfig) error {
	f.hyperparams = f.hyperparams.Merge(cfg.Hyperparams)
	f.checkpoint = f.checkpoint.merged(cfg.Checkpoint)

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 64
	}
	saveEvery := cfg.SaveEvery
	if saveEvery == 0 {
		saveEvery = cfg.Epochs
	}

	if path := f.checkpoint.SnapshotPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := f.loadSnapshot(path); err != nil {
				return err
			}
		}
	}

	f.lossFn = cfg.Loss
	if f.lossFn == nil {
		f.lossFn = CalcKLMean
	}

	newOpt := cfg.NewOptimizer
	if newOpt == nil {
		newOpt = func(groups []optim.ParamGroup, hp optim.Hyperparams) optim.Optimizer {
			return optim.NewAdamW(groups, hp)
		}
	}
	f.optimizer = newOpt(f.parameterGroups(), f.hyperparams)

	f.scheduler = nil
	if cfg.NewScheduler != nil {
		f.scheduler = cfg.NewScheduler(f.optimizer)
	}

	f.TrainBatchSize = batchSize
	if cfg.Epochs > 0 {
		return f.train(cfg.Epochs, batchSize, saveEvery)
	}
	return nil
}

// parameterGroups prefers the flow's own grouping when it exposes one.
func (f *Fitter) parameterGroups() []optim.ParamGroup {
	if g, ok := f.model.Flow.(GroupedFlowNetwork); ok {
		return g.ParameterGroups()
	}
	return optim.WholeVector(len(f.model.Flow.Parameters()))
}

func (f *Fitter) train(epochs, batchSize, saveEvery int) error {
	start := time.Now()
	var loss float64
	for epoch := 1; epoch <= epochs; epoch++ {
		var err error
		loss, _, err = f.step(batchSize)
		if err != nil {
			return err
		}
		if err := f.checkpointEpoch(epoch, loss, saveEvery); err != nil {
			return err
		}
		if f.scheduler != nil {
			f.scheduler.Step()
		}
	}
	f.checkpoint.EpochsRun += epochs

	if f.isCoordinator() {
		f.model.logger.Info("training finished",
			"epochs", epochs,
			"epochs_run", f.checkpoint.EpochsRun,
			"last_loss", loss,
			"elapsed", time.Since(start))
	}
	return nil
}

// step performs one training step on a fresh prior batch: forward pass,
// loss, numerical gradient, one optimizer update. It returns the loss and
// the per-sample logq - logp, both evaluated at the pre-update parameters.
func (f *Fitter) step(batchSize int) (float64, []float64, error) {
	flow := f.model.Flow
	x, logr := f.model.Prior.SampleWithLogProb(batchSize)

	lossAt := func() (float64, []float64) {
		y, logJ := flow.Forward(x)
		logq := make([]float64, len(logr))
		for i := range logq {
			logq[i] = logr[i] - logJ[i]
		}
		action := f.model.Action.Eval(y)
		logp := make([]float64, len(action))
		for i, v := range action {
			logp[i] = -v
		}
		return f.lossFn(logq, logp), diff(logq, logp)
	}

	loss, logqp := lossAt()

	params := flow.Parameters()
	grads := make([]float64, len(params))
	for i := range params {
		perturbed := append([]float64(nil), params...)

		perturbed[i] = params[i] + gradEps
		if err := flow.SetParameters(perturbed); err != nil {
			return 0, nil, err
		}
		lossPlus, _ := lossAt()

		perturbed[i] = params[i] - gradEps
		if err := flow.SetParameters(perturbed); err != nil {
			return 0, nil, err
		}
		lossMinus, _ := lossAt()

		grads[i] = (lossPlus - lossMinus) / (2 * gradEps)
	}

	updated := f.optimizer.Update(params, grads)
	if err := flow.SetParameters(updated); err != nil {
		return 0, nil, err
	}
	return loss, logqp, nil
}

// checkpointEpoch records the raw training loss, saves snapshots on the
// save-every grid, and on evaluation epochs (the first epoch and every
// print-stride) gathers an independent evaluation batch across all ranks and
// appends the derived statistics to the history on the coordinator.
func (f *Fitter) checkpointEpoch(epoch int, loss float64, saveEvery int) error {
	ck := f.checkpoint

	if f.isCoordinator() {
		f.History.StepLoss = append(f.History.StepLoss, loss)
		if ck.SnapshotPath != "" && saveEvery > 0 && epoch%saveEvery == 0 {
			if err := f.saveSnapshot(epoch); err != nil {
				return err
			}
		}
	}

	if epoch != 1 && (ck.PrintStride <= 0 || epoch%ck.PrintStride != 0) {
		return nil
	}

	nranks := f.model.Device.NRanks()
	perRank := ck.PrintBatchSize / nranks
	if perRank == 0 {
		return fmt.Errorf("%w: print batch size %d splits to zero across %d ranks",
			ErrConfiguration, ck.PrintBatchSize, nranks)
	}

	_, logq, logp := f.model.Posterior.SampleQP(perRank)
	logq, err := f.model.Device.AllGather(logq)
	if err != nil {
		return err
	}
	logp, err = f.model.Device.AllGather(logp)
	if err != nil {
		return err
	}

	if !f.isCoordinator() {
		return nil
	}
	evalLoss := f.lossFn(logq, logp)
	f.appendHistory(logq, logp, evalLoss)
	f.logStatus(epoch, evalLoss)
	return nil
}

// appendHistory derives the evaluation statistics from a gathered batch and
// appends them to the history. ESS is computed on the already-differenced
// logqp, matching the two-argument CalcESS applied to (logqp, 0).
func (f *Fitter) appendHistory(logq, logp []float64, loss float64) {
	logqp := diff(logq, logp)
	f.History.appendEval(
		loss,
		ValErr{Mean: stat.Mean(logqp, nil), Err: stat.StdDev(logqp, nil)},
		EstimateLogZ(logqp),
		essFromLogQP(logqp),
		CalcCorrCoef(logq, logp),
		f.model.MCMC.EstimateAcceptRate(logqp),
	)
}

// logStatus emits the status line for an evaluation epoch. Epoch numbers are
// offset by the cumulative epochs of prior runs so resumed counts continue
// monotonically.
func (f *Fitter) logStatus(epoch int, loss float64) {
	if !f.checkpoint.Display {
		return
	}
	if !f.printedHeader {
		f.model.logger.Info("note: log(q/p) is estimated with normalized p; " +
			"mean and error are obtained from samples in a batch")
		f.printedHeader = true
	}
	h := &f.History
	f.model.logger.Info("fit status",
		"epoch", epoch+f.checkpoint.EpochsRun,
		"loss", loss,
		"ess", h.ESS[len(h.ESS)-1],
		"logz", h.LogZ[len(h.LogZ)-1].String(),
		"accept_rate", h.AcceptRate[len(h.AcceptRate)-1].String(),
	)
}

// isCoordinator gates side effects (history, snapshots, status lines) to
// exactly one rank.
func (f *Fitter) isCoordinator() bool {
	return f.model.Device.Rank() == 0
}

func (f *Fitter) loadSnapshot(path string) error {
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}
	if err := f.model.Flow.SetParameters(snap.Params); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotLoad, err)
	}
	f.checkpoint.EpochsRun = snap.EpochsRun
	if f.isCoordinator() {
		f.model.logger.Info("resuming from snapshot",
			"path", path,
			"epochs_run", snap.EpochsRun,
			"run_id", snap.RunID)
	}
	return nil
}

func (f *Fitter) saveSnapshot(epoch int) error {
	epochsRun := f.checkpoint.EpochsRun + epoch
	path := snapshotPathFor(f.checkpoint.SnapshotPath, epochsRun)
	snap := Snapshot{
		RunID:     f.runID,
		EpochsRun: epochsRun,
		Params:    f.model.Flow.Parameters(),
		SavedAt:   time.Now(),
	}
	if err := writeSnapshot(path, snap); err != nil {
		return err
	}
	f.model.logger.Info("snapshot saved", "path", path, "epochs_run", epochsRun)
	return nil
}
