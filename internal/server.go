package internal

import (
	"context"
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ralph-api/internal/auth"
	"ralph-api/internal/config"
	"ralph-api/internal/handlers"
	"ralph-api/internal/inventory"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
	"ralph-api/pkg/importer"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Store      store.Store
	Inventory  *inventory.Inventory
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Limiter    *RateLimiter
	Log        logrus.FieldLogger
	cfg        *config.Config
}

// NewServer wires the router over st. The rate limiter is enabled when a
// redis address is configured.
func NewServer(cfg *config.Config, st store.Store, log logrus.FieldLogger) (*Server, error) {
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Expiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}

	limiter, err := NewRateLimiter(cfg.RateLimit, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Store: st,
		Inventory: inventory.New(st,
			inventory.WithPathSeparator(cfg.ConfigPath.Separator),
			inventory.WithLogger(log),
		),
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    NewMetrics(),
		Limiter:    limiter,
		Log:        log,
		cfg:        cfg,
	}

	s.Router.Use(middleware.Recoverer)
	s.Router.Use(s.requestLogger)
	if cfg.Metrics.Enabled {
		s.Router.Use(s.Metrics.Middleware())
	}
	s.Router.NotFound(s.notFound)
	s.Router.MethodNotAllowed(s.methodNotAllowed)

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	s.Router.Post("/auth/login", s.loginUser)
	if cfg.Metrics.Enabled {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	if cfg.Docs.Enabled {
		s.mountDocs(s.Router)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// Handler returns the root handler instrumented with OpenTelemetry
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router, "ralph-api")
}

// Close releases the limiter and the store
func (s *Server) Close(ctx context.Context) error {
	if s.Limiter != nil {
		s.Limiter.Close()
	}
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// mountDocs serves the OpenAPI document and a Swagger UI page
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Ralph API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}

// canWrite guards mutating routes
func canWrite(h http.HandlerFunc) http.HandlerFunc {
	return auth.MustRole(models.RoleAdmin, models.RoleEditor)(h).(http.HandlerFunc)
}

// adminOnly guards account management
func adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return auth.MustRole(models.RoleAdmin)(h).(http.HandlerFunc)
}

// resource groups the handlers of a CRUD endpoint. Nil handlers are not
// routed, so chi answers 405 for them.
type resource struct {
	list, create, get, update, remove http.HandlerFunc
}

func (s *Server) mountResource(r chi.Router, path string, res resource) {
	r.Route(path, func(r chi.Router) {
		writes := r.With(s.rateLimit, s.withTx)
		if res.list != nil {
			r.Get("/", res.list)
		}
		if res.create != nil {
			writes.Post("/", canWrite(res.create))
		}
		if res.get != nil {
			r.Get("/{id}", res.get)
		}
		if res.update != nil {
			writes.Patch("/{id}", canWrite(res.update))
			writes.Put("/{id}", canWrite(res.update))
		}
		if res.remove != nil {
			writes.Delete("/{id}", canWrite(res.remove))
		}
	})
}

// mountProtectedRoutes mounts all protected routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	for _, c := range models.Catalogs {
		s.mountResource(r, "/"+string(c), s.namedResource(c))
	}
	s.mountResource(r, "/profitcenter", resource{
		list: s.listProfitCenters, create: s.createProfitCenter, get: s.getProfitCenter,
		update: s.updateProfitCenter, remove: s.deleteProfitCenter,
	})
	s.mountResource(r, "/category", resource{
		list: s.listCategories, create: s.createCategory, get: s.getCategory,
		update: s.updateCategory, remove: s.deleteCategory,
	})
	s.mountResource(r, "/assetmodel", resource{
		list: s.listAssetModels, create: s.createAssetModel, get: s.getAssetModel,
		update: s.updateAssetModel, remove: s.deleteAssetModel,
	})

	s.mountResource(r, "/service", resource{
		list: s.listServices, create: s.createService, get: s.getService,
		update: s.updateService, remove: s.deleteService,
	})
	s.mountResource(r, "/serviceenvironment", resource{
		list: s.listServiceEnvironments, get: s.getServiceEnvironment,
	})

	s.mountResource(r, "/configurationmodule", resource{
		list: s.listConfigurationModules, create: s.createConfigurationModule, get: s.getConfigurationModule,
		update: s.updateConfigurationModule, remove: s.deleteConfigurationModule,
	})
	s.mountResource(r, "/configurationclass", resource{
		list: s.listConfigurationClasses, create: s.createConfigurationClass, get: s.getConfigurationClass,
		update: s.updateConfigurationClass, remove: s.deleteConfigurationClass,
	})

	s.mountResource(r, "/baseobject", resource{
		list: s.listBaseObjects, get: s.getBaseObject,
	})
	for _, k := range kindsWithEndpoint() {
		s.mountResource(r, "/"+k.Name, s.kindResource(k))
	}

	s.mountResource(r, "/ethernet", resource{
		list: s.listEthernets, create: s.createEthernet, get: s.getEthernet,
		update: s.updateEthernet, remove: s.deleteEthernet,
	})
	s.mountResource(r, "/ipaddress", resource{
		list: s.listIPAddresses, create: s.createIPAddress, get: s.getIPAddress,
		update: s.updateIPAddress, remove: s.deleteIPAddress,
	})

	// Excel import
	importsHandler := handlers.NewImportsHandler(importer.New(s.Inventory, s.Log), s.Log)
	r.With(s.rateLimit).Post("/imports/excel", canWrite(importsHandler.UploadExcel))

	// User management - admin only
	s.mountResource(r, "/user", resource{
		list: adminOnly(s.listUsers), create: adminOnly(s.createUser), get: adminOnly(s.getUser),
		update: adminOnly(s.updateUser), remove: adminOnly(s.deleteUser),
	})

	// Self-service routes
	r.Get("/auth/profile", s.getUserProfile)
	r.With(s.withTx).Put("/auth/profile", s.updateUserProfile)
	r.With(s.withTx).Put("/auth/change-password", s.changePassword)
}
