package handlers

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	StaticDir    string
	EnableStatic bool
	RateLimit    float64
	RateBurst    int
}

// NewRouter wires every route onto a gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogger(), CORSMiddleware())

	if opts.EnableStatic {
		index := filepath.Join(opts.StaticDir, "index.html")
		r.StaticFile("/", index)
		r.StaticFile("/client.html", index)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/ws", h.hub.ServeWS)
	r.GET("/session", h.GetSession)

	// Webhook ingestion
	hooks := r.Group("/")
	if opts.RateLimit > 0 {
		hooks.Use(RateLimitMiddleware(NewIPLimiter(opts.RateLimit, opts.RateBurst)))
	}
	{
		hooks.POST("/", h.NamedSignal)
		hooks.POST("/new", h.PairSignal)
		hooks.POST("/gtatrend", h.CurrentSignal)
	}

	// Alerts, links and pairs
	r.POST("/addCanhBao", h.AddAlert)
	r.POST("/addLink", h.AddLink)
	r.POST("/createCanhBaoAndLink", h.CreatePair)
	r.DELETE("/CanhBaoAndLink/:index", h.DeletePair)
	r.GET("/CanhBaoAndLinkDeleteAll", h.DeleteAllPairs)
	r.POST("/resetState", h.ResetState)
	r.POST("/updateLink", h.UpdateLink)
	r.GET("/deleteAll", h.ResetDatabase)

	r.GET("/allCanhBaoAndLink", h.GetPairs)
	r.GET("/allCanhBaoUpdateds", h.GetPairs)
	r.GET("/allCanhBaoAndLinkBT", h.GetPairRows)
	r.GET("/allLinks", h.GetLinks)
	r.GET("/allCanhBaos", h.GetAlerts)
	r.GET("/allVariables", h.GetVariables)

	return r
}
