package events

const (
	AgreementStarted       = "agreement.started"
	AgreementPaused        = "agreement.paused"
	AgreementResumed       = "agreement.resumed"
	AgreementCancelled     = "agreement.cancelled"
	AgreementCompleted     = "agreement.completed"
	AgreementAmountChanged = "agreement.amount_changed"

	InstanceScheduled       = "instance.scheduled"
	InstanceStarted         = "instance.started"
	InstanceCompleted       = "instance.completed"
	InstanceCancelled       = "instance.cancelled"
	InstanceMissed          = "instance.missed"
	InstanceOutcomeRecorded = "instance.outcome_recorded"
	InstanceDueSoon         = "instance.due_soon"
)
