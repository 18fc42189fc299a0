package model

// Workbench is where DO_BILL tasks bring ingredients and do their work.
type Workbench struct {
	ID              string
	Station         string
	Pos             Vec3i
	InteractionCell Vec3i
	Usable          bool
	Destroyed       bool
}

func (w *Workbench) Gone() bool { return w == nil || w.Destroyed }
