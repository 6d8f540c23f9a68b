package logging

import (
	"fmt"

	"go.uber.org/zap"
)

type impl struct {
	*zap.SugaredLogger
	name string
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	// zap joins names with "." itself, so only the suffix is appended to the core.
	return &impl{name: newName, SugaredLogger: imp.SugaredLogger.Named(subname)}
}
