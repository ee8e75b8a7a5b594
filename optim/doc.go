// Package optim provides flat-vector first-order optimizers and learning
// rate schedules for training flow networks.
//
// Optimizers operate on a flat parameter vector, optionally partitioned into
// [ParamGroup] subsets with per-group hyperparameter overrides. The default
// optimizer is [AdamW], Adam with bias correction and decoupled weight
// decay; [CosineAnnealing] provides the learning rate schedule.
package optim
