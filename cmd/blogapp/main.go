package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"blogclone/pkg/config"
	"blogclone/pkg/handlers"
	"blogclone/pkg/middleware"
	"blogclone/pkg/posts"
	"blogclone/pkg/session"
	"blogclone/pkg/store"
	"blogclone/pkg/user"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	createUsersSchema = `CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) NOT NULL,
		username VARCHAR(50) NOT NULL,
		avatar VARCHAR(255) NOT NULL DEFAULT '',
		password VARBINARY(100) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY username (username)
	) ENGINE=INNODB DEFAULT CHARSET=utf8;`

	createSessionsSchema = `CREATE TABLE IF NOT EXISTS sessions (
		id CHAR(36) NOT NULL,
		user_id CHAR(36) NOT NULL,
		PRIMARY KEY (id),
		KEY user_id (user_id)
	) ENGINE=INNODB DEFAULT CHARSET=utf8;`
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	app := &Application{Config: cfg}
	app.Run()
}

type Application struct {
	Config *config.Config

	HTTPServer *http.Server
}

func (a *Application) Run() {
	zapLogger, _ := zap.NewProduction()
	defer zapLogger.Sync() // flushes buffer, if any
	logger := zapLogger.Sugar()

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})

	needRedis := a.Config.Store.Backend == "redis" || a.Config.Auth.Sessions == "redis"
	if needRedis {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			panic(err.Error())
		}
	}

	privateKeyBytes, err := ioutil.ReadFile(a.Config.Auth.PrivateKeyPath)
	if err != nil {
		panic(err)
	}

	publicKeyBytes, err := ioutil.ReadFile(a.Config.Auth.PublicKeyPath)
	if err != nil {
		panic(err)
	}

	smJWT, err := session.NewSessionsJWTManager(privateKeyBytes, publicKeyBytes)
	if err != nil {
		panic(err)
	}

	db, err := sql.Open("mysql", a.Config.MySQL.DSN)
	if err != nil {
		panic(err.Error())
	}

	defer db.Close()
	err = db.Ping()
	if err != nil {
		panic(err)
	}

	_, err = db.Exec(createUsersSchema)
	if err != nil {
		panic(err)
	}

	var sm session.SessionManager
	switch a.Config.Auth.Sessions {
	case "jwt":
		sm = smJWT
	case "redis":
		sm = session.NewSessionManagerRedis(rdb, smJWT)
	case "mysql":
		_, err = db.Exec(createSessionsSchema)
		if err != nil {
			panic(err)
		}
		sm = session.NewSessionManagerSQL(db, smJWT)
	default:
		panic(fmt.Sprintf("unknown sessions backend %q", a.Config.Auth.Sessions))
	}

	st := a.buildStore(rdb)

	userRepo := user.NewUserRepoSQL(db)
	postsSvc := posts.NewService(st, logger)

	userHandler := &handlers.UserHandler{
		Sm:     sm,
		Repo:   userRepo,
		Logger: logger,
	}

	postsHandler := &handlers.PostHandler{
		Svc:    postsSvc,
		Logger: logger,
	}

	streamHandler := &handlers.StreamHandler{
		Sm:     sm,
		Store:  st,
		Logger: logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	api := r.PathPrefix("/api/").Subrouter()

	api.HandleFunc("/login", userHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/register", userHandler.Register).Methods(http.MethodPost)

	api.HandleFunc("/posts/", postsHandler.GetAll).Methods(http.MethodGet)
	api.HandleFunc("/posts", postsHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/post/{id}", postsHandler.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/post/{id}", postsHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/post/{id}", postsHandler.Delete).Methods(http.MethodDelete)

	api.HandleFunc("/post/{id}/publish", postsHandler.Publish).Methods(http.MethodPost)
	api.HandleFunc("/post/{id}/like", postsHandler.Like).Methods(http.MethodPost)
	api.HandleFunc("/post/{id}/dislike", postsHandler.Dislike).Methods(http.MethodPost)
	api.HandleFunc("/post/{id}/comments", postsHandler.AddComment).Methods(http.MethodPost)

	api.HandleFunc("/stream", streamHandler.Serve).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteResponse(w, "not found", http.StatusNotFound)
	})

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	handler := middleware.Auth(logger, sm, r)
	handler = middleware.Log(logger, handler)
	handler = middleware.Recover(logger, handler)

	srv := &http.Server{
		Handler:      handler,
		Addr:         a.Config.HTTP.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	a.HTTPServer = srv

	logger.Infof("Started server at %s", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}

func (a *Application) buildStore(rdb *redis.Client) store.Store {
	switch a.Config.Store.Backend {
	case "memory":
		return store.NewMemStore()
	case "redis":
		return store.NewRedisStore(rdb)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := store.NewMongoClient(ctx, a.Config.Store.Mongo.URL)
		if err != nil {
			panic(err)
		}
		err = client.Ping(ctx, readpref.Primary())
		if err != nil {
			panic(err)
		}
		return store.NewMongoStore(client.Database(a.Config.Store.Mongo.Database))
	default:
		panic(fmt.Sprintf("unknown store backend %q", a.Config.Store.Backend))
	}
}
