package logger

import "github.com/sirupsen/logrus"

// New builds the service-wide logrus logger.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
