package context

type Key string

const (
	Claims    Key = "claims"
	App       Key = "app"
	Principal Key = "principal"
	Params    Key = "params"
)
