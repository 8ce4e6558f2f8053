package control

import (
	"github.com/core-tools/hsu-scheduler/pkg/logging"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"
)

const corePrefix = "[core] "

// NewCoreLogger routes the transport library's logging through logger
func NewCoreLogger(logger logging.Logger) coreLogging.Logger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return coreLogging.NewLogger(
		corePrefix, coreLogging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		})
}
