package configobject

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDBTypeName(t *testing.T) {
	tests := []struct {
		name string
		o    Object
		want string
	}{
		{"host", &Host{ObjectBase: ObjectBase{ObjName: "h"}}, "host"},
		{"service", &Service{ObjectBase: ObjectBase{ObjName: "h!s"}}, "service"},
		{"host-downtime", &Downtime{HostName: "h"}, "hostdowntime"},
		{"service-downtime", &Downtime{HostName: "h", ServiceName: "s"}, "servicedowntime"},
		{"host-comment", &Comment{HostName: "h"}, "hostcomment"},
		{"service-comment", &Comment{HostName: "h", ServiceName: "s"}, "servicecomment"},
		{"checkcommand", &CheckCommand{}, "checkcommand"},
		{"notificationcommand", &NotificationCommand{}, "notificationcommand"},
		{"eventcommand", &EventCommand{}, "eventcommand"},
		{"zone", &Zone{}, "zone"},
		{"user", &User{}, "user"},
		{"usergroup", &UserGroup{}, "usergroup"},
		{"hostgroup", &HostGroup{}, "hostgroup"},
		{"servicegroup", &ServiceGroup{}, "servicegroup"},
		{"endpoint", &Endpoint{}, "endpoint"},
		{"notification", &Notification{}, "notification"},
		{"timeperiod", &TimePeriod{}, "timeperiod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DBTypeName(tt.o))
		})
	}
}
