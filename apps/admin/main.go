package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	emailsvc "github.com/trezcool/soko/services/email"
	logsvc "github.com/trezcool/soko/services/logger"
	"github.com/trezcool/soko/storage/database"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	z, err := logsvc.NewZap(conf.Debug)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(z.Named("admin"), conf)

	// set up DB
	errAndDie(logger, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(logger, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	analytics.InitValidators(validate, translator)

	clock := clockwork.NewRealClock()
	users := sqlxrepos.NewUserRepository(db)
	sales := sqlxrepos.NewSaleRepository(db)
	customers := sqlxrepos.NewCustomerRepository(db)
	tasks := sqlxrepos.NewTaskRepository(db)
	analyticsSvc := analytics.NewService(users, sales, customers, tasks, clock, validate)

	// start CLI
	cli := commandLine{
		db:        db,
		out:       os.Stdout,
		clock:     clock,
		validate:  validate,
		usrSvc:    user.NewService(users),
		sales:     sales,
		customers: customers,
		tasks:     tasks,
		reportSvc: report.NewService(
			sqlxrepos.NewReportRepository(db), users, analyticsSvc, emailsvc.NewService(conf, logger),
			clock, logger, conf.Scheduler.Concurrency,
		),
		taskSvc: task.NewService(tasks, clock),
		auth:    echoapi.NewAuth(conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	_ = z.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
