package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fulldump/box"
	"go.uber.org/zap"

	"github.com/fulldump/recordset/api"
	"github.com/fulldump/recordset/configuration"
	"github.com/fulldump/recordset/database"
	"github.com/fulldump/recordset/service"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/store/boltstore"
	"github.com/fulldump/recordset/store/memstore"
	"github.com/fulldump/recordset/store/sqlstore"
)

var VERSION = "dev"

func NewLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	return config.Build()
}

// sessions opens the record store selected by backend. A nil function means
// records are kept in the database collections.
func sessions(c *configuration.Configuration, db *database.Database) (func() store.Session, io.Closer, error) {

	switch c.Backend {
	case configuration.BackendCollection, "":
		return func() store.Session { return db.NewSession() }, nil, nil

	case configuration.BackendSqlite:
		s, err := sqlstore.Open(filepath.Join(c.Dir, "records.sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return func() store.Session { return s.NewSession() }, s, nil

	case configuration.BackendBolt:
		s, err := boltstore.Open(filepath.Join(c.Dir, "records.bolt"))
		if err != nil {
			return nil, nil, err
		}
		return func() store.Session { return s.NewSession() }, s, nil

	case configuration.BackendMemory:
		s := memstore.New()
		return func() store.Session { return s.NewSession() }, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown backend '%s'", c.Backend)
}

func Bootstrap(c *configuration.Configuration) (start, stop func(), err error) {

	logger, err := NewLogger(c.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	err = os.MkdirAll(c.Dir, 0777)
	if err != nil {
		return nil, nil, fmt.Errorf("data dir: %w", err)
	}

	db := database.NewDatabase(&database.Config{
		Dir:    c.Dir,
		Logger: logger,
	})

	newSession, closer, err := sessions(c, db)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("record store", zap.String("backend", c.Backend))

	s := service.NewService(db,
		service.WithSessions(newSession),
		service.WithLogger(logger),
	)

	b := api.Build(s, VERSION)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(logger),
		api.InterceptorUnavailable(db),
		api.PrettyErrorInterceptor,
		api.RecoverFromPanic(logger),
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("listening", zap.String("addr", c.HttpAddr))

	once := &sync.Once{}
	stop = func() {
		once.Do(func() {
			server.Shutdown(context.Background())
			if err := db.Stop(); err != nil {
				logger.Error("stop database", zap.Error(err))
			}
			if closer != nil {
				if err := closer.Close(); err != nil {
					logger.Error("close record store", zap.Error(err))
				}
			}
			logger.Sync()
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		logger.Info("signal received", zap.String("signal", sig.String()))
		stop()
	}()

	start = func() {

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Load()
			if err != nil {
				logger.Error("load database", zap.Error(err))
				stop()
				return
			}
			if c.SchemaDir != "" {
				err := s.ImportSchemas(c.SchemaDir)
				if err != nil {
					logger.Error("import schemas", zap.Error(err))
				}
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := server.Serve(ln)
			if err != nil && err != http.ErrServerClosed {
				logger.Error("serve", zap.Error(err))
			}
		}()

		wg.Wait()
	}

	return
}
