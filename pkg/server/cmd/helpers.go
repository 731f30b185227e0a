/* Copyright 2025 Matsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"net/http"
	"time"

	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/server/app"
	"github.com/matfinder/matsync/pkg/server/config"
	"github.com/matfinder/matsync/pkg/server/controllers"
	"github.com/matfinder/matsync/pkg/server/database"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func initDB(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Init(cfg.DBDriver, cfg.DBDSN, cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}

	return db, nil
}

func initApp(cfg config.Config) (app.App, error) {
	db, err := initDB(cfg)
	if err != nil {
		return app.App{}, err
	}

	return app.App{
		DB:               db,
		Clock:            clock.New(),
		APIKey:           cfg.APIKey,
		Port:             cfg.Port,
		DisableRateLimit: cfg.DisableRateLimit,
	}, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

// newHTTPServer builds the http server for the app
func newHTTPServer(a *app.App) (*http.Server, error) {
	r, err := controllers.Handler(a)
	if err != nil {
		return nil, errors.Wrap(err, "initializing router")
	}

	return &http.Server{
		Addr:              ":" + a.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
