package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	"github.com/BartekS5/tablesync/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Source driver names as registered with database/sql.
const (
	DriverOracle    = "oracle"
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

// ConnectSQL opens a pool for the given driver and verifies it with a ping.
func ConnectSQL(driver, connString string) (*sql.DB, error) {
	switch driver {
	case DriverOracle, DriverSQLServer, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported source driver %q", driver)
	}

	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("error opening %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to %s database (ping failed): %w", driver, err)
	}

	logger.Infof("Connected to %s source database.", driver)
	return db, nil
}

func ConnectMongo(connString string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connString))
	if err != nil {
		return nil, fmt.Errorf("error creating MongoDB client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)

		return nil, fmt.Errorf("error connecting to MongoDB (ping failed): %w", err)
	}

	logger.Infof("Connected to MongoDB.")
	return client, nil
}

// DisconnectMongo closes the client with a bounded wait.
func DisconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warnf("MongoDB disconnect failed: %v", err)
	}
}
