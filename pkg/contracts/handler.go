package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a service's HTTP surface. Routes registered here sit behind the
// authenticated middleware stack built by pkg/app.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
