package selection

import "fmt"

// Order is the sequence of buffering and projection for the secondary view.
type Order int

const (
	// ProjectThenBuffer moves the source geometry into the secondary reference
	// and buffers it there.
	ProjectThenBuffer Order = iota
	// BufferThenProject buffers in the source reference and moves the buffer.
	BufferThenProject
)

func (o Order) String() string {
	switch o {
	case ProjectThenBuffer:
		return "project-then-buffer"
	case BufferThenProject:
		return "buffer-then-project"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// ParseOrder accepts the String forms.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "project-then-buffer", "":
		return ProjectThenBuffer, nil
	case "buffer-then-project":
		return BufferThenProject, nil
	}
	return 0, fmt.Errorf("unknown order %q", s)
}

func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Order) UnmarshalText(text []byte) error {
	v, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
