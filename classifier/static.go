package classifier

import "context"

// StaticCompleter always answers with the same verdict.
type StaticCompleter struct {
	Verdict string
}

func (c StaticCompleter) Complete(_ context.Context, _ string) (string, error) {
	return c.Verdict, nil
}
