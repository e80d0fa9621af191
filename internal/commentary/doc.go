// Package commentary writes the strategy brief attached to a growth plan.
//
// A Generator never fails. Template renders a deterministic brief from the
// chosen experiment; Safe wraps a fallible Provider, such as GeminiProvider,
// and falls back to the same template on errors, timeouts or empty output.
//
//	provider, err := commentary.NewGemini(ctx, apiKey, "")
//	if err != nil {
//		return err
//	}
//	gen := commentary.NewSafe(provider, commentary.WithLogger(logger))
//	text := gen.Generate(ctx, plan)
package commentary
