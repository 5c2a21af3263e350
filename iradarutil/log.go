/*
Copyright © 2026 the iRadar authors.
This file is part of iRadar.

iRadar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

iRadar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.
*/

package iradarutil

import (
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// InitLog configures the standard logger from the IMETEO_LOG_LEVEL,
// IMETEO_LOG_FORMAT and IMETEO_LOG_FILE environment variables.
func InitLog() {
	log := logrus.StandardLogger()

	level := logrus.InfoLevel
	if s := os.Getenv("IMETEO_LOG_LEVEL"); s != "" {
		if l, err := logrus.ParseLevel(s); err == nil {
			level = l
		} else {
			log.Warnf("unknown log level %q; using info", s)
		}
	}
	log.SetLevel(level)

	if os.Getenv("IMETEO_LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if path := os.Getenv("IMETEO_LOG_FILE"); path != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
}
