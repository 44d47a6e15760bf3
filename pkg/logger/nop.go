package logger

type nop struct{}

// Nop returns a logger that discards everything. It is the default for library components.
func Nop() Logger { return nop{} }

func (n nop) WithField(string, any) Logger     { return n }
func (n nop) WithFields(map[string]any) Logger { return n }
func (n nop) WithError(error) Logger           { return n }
func (nop) Debug(...any)                       {}
func (nop) Info(...any)                        {}
func (nop) Warn(...any)                        {}
func (nop) Error(...any)                       {}
func (nop) Fatal(...any)                       {}
func (nop) Debugf(string, ...any)              {}
func (nop) Infof(string, ...any)               {}
func (nop) Warnf(string, ...any)               {}
func (nop) Errorf(string, ...any)              {}
func (nop) Fatalf(string, ...any)              {}
func (nop) SetLevel(Level)                     {}
func (nop) GetLevel() Level                    { return Disabled }

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
