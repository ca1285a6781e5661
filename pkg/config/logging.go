package config

import "github.com/parvbhullar/media-gateway/runtime/logger"

// LoggerOptions converts the logging section into logger options. The
// service name is added as a common field unless one is already set.
func (c *BridgeConfig) LoggerOptions() logger.Options {
	fields := make(map[string]string, len(c.Spec.Logging.CommonFields)+1)
	for k, v := range c.Spec.Logging.CommonFields {
		fields[k] = v
	}
	if _, ok := fields["service"]; !ok && c.Spec.Tracing.ServiceName != "" {
		fields["service"] = c.Spec.Tracing.ServiceName
	}
	return logger.Options{
		Level:        c.Spec.Logging.Level,
		Format:       c.Spec.Logging.Format,
		CommonFields: fields,
	}
}
