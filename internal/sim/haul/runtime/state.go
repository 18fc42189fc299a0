package runtime

// State is one step of the haul state machine.
type State int

const (
	StateReserveTarget State = iota
	StateTravel
	StatePick
	StateDrainSchedule
	StateCarry
	StatePlace
	StateRepeatFromQueue

	// DO_BILL only.
	StateCollectNext
	StateGotoWorkbench
	StateFindPlaceCell
	StatePlaceIngredient
	StateDropNextHeld
	StateDoWork
	StateFinishRecipe

	StateTerminated
)

var stateNames = map[State]string{
	StateReserveTarget:   "RESERVE_TARGET",
	StateTravel:          "TRAVEL",
	StatePick:            "PICK",
	StateDrainSchedule:   "DRAIN_SCHEDULE",
	StateCarry:           "CARRY",
	StatePlace:           "PLACE",
	StateRepeatFromQueue: "REPEAT_FROM_QUEUE",
	StateCollectNext:     "COLLECT_NEXT",
	StateGotoWorkbench:   "GOTO_WORKBENCH",
	StateFindPlaceCell:   "FIND_PLACE_CELL",
	StatePlaceIngredient: "PLACE_INGREDIENT",
	StateDropNextHeld:    "DROP_NEXT_HELD",
	StateDoWork:          "DO_WORK",
	StateFinishRecipe:    "FINISH_RECIPE",
	StateTerminated:      "TERMINATED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseState is the inverse of String; used when restoring snapshots.
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
