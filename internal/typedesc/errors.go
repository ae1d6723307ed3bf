package typedesc

import "fmt"

// DescError reports a problem in one item of a description file.
type DescError struct {
	File string // path or name given to Decode; empty for in-memory sets
	Item string // e.g. "struct point", "function abs"
	Err  error
}

func (e *DescError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.File != "" && e.Item != "":
		return fmt.Sprintf("%s: %s: %v", e.File, e.Item, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	case e.Item != "":
		return fmt.Sprintf("%s: %v", e.Item, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *DescError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
