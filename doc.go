// Package normflow implements training and sampling for normalizing-flow
// models of distributions defined by an action functional.
//
// A Model binds three capabilities: a Prior (an easy-to-sample base
// distribution), a FlowNetwork (an invertible parametric map that tracks the
// log-Jacobian of its transformation), and an Action (the un-normalized
// negative log-density of the target distribution). The attached Fitter
// trains the flow by minimizing a KL-style loss between the pushed-forward
// prior and the target; the attached Posterior draws samples and computes
// their log-densities; the attached MCMCSampler applies an accept/reject
// correction using the same importance weights.
//
// Basic usage:
//
//	prior, err := normflow.NewNormalPrior(normflow.NormalPriorConfig{Dim: 2})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := normflow.NewModel(normflow.ModelConfig{
//	    Prior:  prior,
//	    Flow:   normflow.NewAffineFlow(2),
//	    Action: normflow.QuadraticAction{Coupling: 4},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := m.Fitter.Fit(normflow.FitConfig{Epochs: 500, BatchSize: 128}); err != nil {
//	    log.Fatal(err)
//	}
//	y := m.Posterior.Sample(1024)
package normflow
