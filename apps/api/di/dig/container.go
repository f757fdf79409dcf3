package dig_container

import (
	"context"
	"fmt"
	"log"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	cachesvc "github.com/trezcool/soko/services/cache"
	emailsvc "github.com/trezcool/soko/services/email"
	logsvc "github.com/trezcool/soko/services/logger"
	schedulersvc "github.com/trezcool/soko/services/scheduler"
	"github.com/trezcool/soko/storage/database"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZap(conf *core.Config) *zap.Logger {
	z, err := logsvc.NewZap(conf.Debug)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return z.With(zap.String("app", conf.AppName), zap.String("build", conf.Build))
}

func newLogger(conf *core.Config, z *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(z.Named("api"), conf)
}

func newDBLogger(conf *core.Config, z *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(z.Named("db"), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newCacheStore(conf *core.Config, logger core.Logger) analytics.Store {
	if conf.Cache.Backend == "redis" {
		return cachesvc.NewRedisStore(conf.Redis, logger)
	}
	return cachesvc.NewMemoryStore(10 * time.Minute)
}

func newCodec(conf *core.Config) analytics.Codec {
	return cachesvc.NewCodec(conf.Cache.Codec, conf.Cache.CompressThreshold)
}

func newReportService(
	conf *core.Config,
	repo report.Repository,
	users user.Repository,
	generator *analytics.Service,
	email core.EmailService,
	clock clockwork.Clock,
	logger core.Logger,
) *report.Service {
	return report.NewService(repo, users, generator, email, clock, logger, conf.Scheduler.Concurrency)
}

func newWorker(conf *core.Config, reports *report.Service, tasks *task.Service, clock clockwork.Clock, logger core.Logger) *schedulersvc.Worker {
	return schedulersvc.NewWorker(conf.Scheduler, reports, tasks, clock, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	analytics.InitValidators(validate, translator)
	report.InitValidators(validate, translator)
	return validate
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(clockwork.NewRealClock))
	must(c.Provide(emailsvc.NewService))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewSaleRepository, dig.As(new(sale.Repository))))
	must(c.Provide(sqlxrepos.NewCustomerRepository, dig.As(new(customer.Repository))))
	must(c.Provide(sqlxrepos.NewTaskRepository, dig.As(new(task.Repository))))
	must(c.Provide(sqlxrepos.NewReportRepository, dig.As(new(report.Repository))))

	// cache
	must(c.Provide(newCacheStore))
	must(c.Provide(newCodec))
	must(c.Provide(analytics.NewCacheManager))

	// services
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(task.NewService))
	must(c.Provide(analytics.NewService))
	must(c.Provide(newReportService))
	must(c.Provide(newWorker))

	// API
	must(c.Provide(echoapi.NewAuth))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
