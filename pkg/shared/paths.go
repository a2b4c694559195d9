// pkg/shared/paths.go

package shared

// Fixed host layout produced by the provisioner. The application owns these
// paths after installation; canvasup only writes them.
const (
	CanvasDir    = "/var/canvas"
	ConfigDir    = CanvasDir + "/config"
	EnvFile      = CanvasDir + "/.env.production"
	ProdLogFile  = CanvasDir + "/log/production.log"
	ServiceUser  = "canvas"
	DatabaseName = "canvas_production"
	DatabaseRole = "canvas"

	CanvasRepoURL    = "https://github.com/instructure/canvas-lms.git"
	CanvasRepoBranch = "prod"

	RbenvRepoURL     = "https://github.com/rbenv/rbenv.git"
	RubyBuildRepoURL = "https://github.com/rbenv/ruby-build.git"

	// RubyVersion is the pinned runtime; install aborts if the active ruby
	// does not report exactly this after setup.
	RubyVersion = "3.3.4"

	ApacheSiteName   = "canvas"
	ApacheSitePath   = "/etc/apache2/sites-available/canvas.conf"
	WorkerUnitName   = "canvas-worker"
	WorkerUnitPath   = "/etc/systemd/system/canvas-worker.service"
	HealthScriptPath = "/usr/local/bin/canvasup-health"
)

// ManagedServices are the systemd units the pipeline starts and the health
// checks verify.
var ManagedServices = []string{"postgresql", "redis-server", "apache2", WorkerUnitName}
