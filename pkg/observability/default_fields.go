package observability

import (
	"os"
	"os/user"

	"github.com/facebookincubator/go-belt/pkg/field"
)

// DefaultFields returns default structured data for observability tooling (logging, tracing, etc)
func DefaultFields(service string) field.Fields {
	var result field.Fields

	if service != "" {
		result = append(result, field.Field{
			Key:   "service",
			Value: FieldService(service),
		})
	}
	result = append(result, field.Field{
		Key:   "pid",
		Value: FieldPID(os.Getpid()),
	})
	result = append(result, field.Field{
		Key:   "uid",
		Value: FieldUID(os.Getuid()),
	})
	if curUser, _ := user.Current(); curUser != nil {
		result = append(result, field.Field{
			Key:   "username",
			Value: FieldUsername(curUser.Username),
		})
	}
	if hostname, err := os.Hostname(); err == nil {
		result = append(result, field.Field{
			Key:   "hostname",
			Value: FieldHostname(hostname),
		})
	}

	return result
}
