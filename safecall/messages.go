package safecall

// Refusal and quota message formats, kept in one place so logs and
// tests agree on wording.
const (
	msgMethodBlocked       = "method %s is not allowed to be called"
	msgInterpreterDisabled = "method %s requires interpretation, which is disabled"
	msgInstructionQuota    = "evaluation exceeded the budget of %d interpreter instructions"
	msgClassLoadQuota      = "evaluation exceeded the budget of %d class file loads"
	msgArrayTooLarge       = "allocating an array of %d elements exceeds the limit of %d"
	msgStaticMutation      = "modifying static field %s is not allowed"
	msgArrayMutation       = "modifying an array of the inspected process is not allowed"
	msgFieldMutation       = "modifying field %s of an existing object is not allowed"
	msgRateLimited         = "evaluation rate limit reached"
)
