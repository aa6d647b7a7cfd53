package ttype

// Tristate is an explicit three-valued flag: not yet observed, false, true.
type Tristate uint8

const (
	Unset Tristate = iota
	False
	True
)

func (t Tristate) IsTrue() bool { return t == True }
func (t Tristate) IsSet() bool  { return t != Unset }

// And folds another observation: the result stays True only while every
// observation is true.
func (t Tristate) And(b bool) Tristate {
	if t == False || !b {
		return False
	}
	return True
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unset"
}
