package anova

// Command strings understood by the cooker firmware. Case-sensitive; every
// command is newline-terminated on the wire. The set prefixes keep their
// trailing space so the value can be appended directly.
const (
	cmdStatus   = "status"
	cmdSetTemp  = "set temp "
	cmdSetTimer = "set timer "
	cmdStart    = "start"
	cmdStop     = "stop"
	cmdUnitsC   = "set units C"
	cmdUnitsF   = "set units F"
)
