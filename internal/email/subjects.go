package email

const (
	subjectWelcome        = "Bedankt voor uw aanvraag"
	subjectFollowUpFirst  = "Heeft u onze e-mail gezien?"
	subjectFollowUpSecond = "Kunnen wij u ergens mee helpen?"
	subjectReengageFirst  = "We hebben nog niets van u gehoord"
	subjectReengageSecond = "Laatste herinnering over uw aanvraag"
)

// subjectForTemplate maps sequence template keys to subject lines.
var subjectForTemplate = map[string]string{
	"welcome":         subjectWelcome,
	"followup_first":  subjectFollowUpFirst,
	"followup_second": subjectFollowUpSecond,
	"reengage_first":  subjectReengageFirst,
	"reengage_second": subjectReengageSecond,
}
