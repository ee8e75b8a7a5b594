package normflow

// TrainHistory records diagnostics accumulated during training on the
// coordinating rank.
//
// StepLoss holds the raw training loss of every completed epoch. The
// remaining series are appended together once per evaluation epoch, so they
// always share the same length; index i is the i-th evaluation event in
// chronological order. Entries are append-only.
type TrainHistory struct {
	StepLoss []float64 `json:"step_loss"`

	Loss       []float64 `json:"loss"`
	LogQP      []ValErr  `json:"logqp"`
	LogZ       []ValErr  `json:"logz"`
	ESS        []float64 `json:"ess"`
	Rho        []float64 `json:"rho"`
	AcceptRate []ValErr  `json:"accept_rate"`
}

// Evals returns the number of recorded evaluation epochs.
func (h *TrainHistory) Evals() int {
	return len(h.Loss)
}

// appendEval appends one evaluation epoch's statistics to every series.
func (h *TrainHistory) appendEval(loss float64, logqp, logz ValErr, ess, rho float64, acceptRate ValErr) {
	h.Loss = append(h.Loss, loss)
	h.LogQP = append(h.LogQP, logqp)
	h.LogZ = append(h.LogZ, logz)
	h.ESS = append(h.ESS, ess)
	h.Rho = append(h.Rho, rho)
	h.AcceptRate = append(h.AcceptRate, acceptRate)
}
