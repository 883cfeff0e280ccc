package grid

import "github.com/goliatone/go-grid/layering"

// Composition is the accumulator folded over feature runtimes.
type Composition[T any] struct {
	Options  TableOptions[T]
	Actions  Actions
	Activity Activity
	Meta     Slots
	// Applied lists the features that were folded, in order.
	Applied []string
	resets  []func()
}

// Resets returns the OnReset hooks collected from the folded features.
func (c Composition[T]) Resets() []func() {
	return append([]func(){}, c.resets...)
}

// Compose folds the enabled features over base in registration order.
// Options overlay field by field with State and Meta merged one level deep;
// actions overlay with non-nil funcs winning; activity is threaded through
// each feature; meta slots merge one level deep. Disabled features are not
// folded at all.
func Compose[T any](base Composition[T], features []Feature[T], ctx FeatureContext[T]) Composition[T] {
	acc := base
	acc.Applied = nil
	acc.resets = nil
	for _, feature := range features {
		if feature == nil || !feature.Enabled() {
			continue
		}
		runtime := feature.Runtime(ctx)
		acc = fold(acc, runtime)
		acc.Applied = append(acc.Applied, feature.Name())
	}
	return acc
}

func fold[T any](acc Composition[T], runtime Runtime[T]) Composition[T] {
	if runtime.PatchTableOptions != nil {
		patch := runtime.PatchTableOptions(acc.Options)
		acc.Options = layering.Overlay(acc.Options, patch, "State", "Meta")
	}
	if runtime.PatchActions != nil {
		patch := runtime.PatchActions(acc.Actions)
		acc.Actions = layering.Overlay(acc.Actions, patch)
	}
	if runtime.PatchActivity != nil {
		acc.Activity = runtime.PatchActivity(acc.Activity)
	}
	if runtime.PatchMeta != nil {
		acc.Meta = layering.MergeMaps(acc.Meta, runtime.PatchMeta(acc.Meta))
	}
	if runtime.OnReset != nil {
		acc.resets = append(acc.resets, runtime.OnReset)
	}
	return acc
}
