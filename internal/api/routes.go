package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	OAuthParent    = "/v1/oauth/{platform}/"
	AuthorizeRoute = OAuthParent + "authorize"
	CallbackRoute  = OAuthParent + "callback"
	ExchangeRoute  = OAuthParent + "exchange"

	AdminParent = "/v1/admin/"

	TokensParent     = AdminParent + "tokens"
	ListTokensRoute  = TokensParent
	GetTokenRoute    = TokensParent + "/{source}"
	InspectRoute     = TokensParent + "/inspect"
	RenewRoute       = TokensParent + "/renew"
	AutoRenewRoute   = TokensParent + "/auto-renew"
	SweepRoute       = TokensParent + "/sweep"
	ListAuditsRoute  = AdminParent + "audits"
	TaskParent       = AdminParent + "tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
