package configobject

// DBTypeName returns the remote typename for o: the lowercased reflection type name, except
// Downtime and Comment are split into host/service variants based on their anchor checkable.
func DBTypeName(o Object) string {
	switch v := o.(type) {
	case *Downtime:
		if v.ServiceName != "" {
			return "servicedowntime"
		}

		return "hostdowntime"
	case *Comment:
		if v.ServiceName != "" {
			return "servicecomment"
		}

		return "hostcomment"
	default:
		return typeNameOf(o)
	}
}

func typeNameOf(o Object) string {
	switch o.(type) {
	case *Host:
		return "host"
	case *Service:
		return "service"
	case *TimePeriod:
		return "timeperiod"
	case *Zone:
		return "zone"
	case *User:
		return "user"
	case *UserGroup:
		return "usergroup"
	case *HostGroup:
		return "hostgroup"
	case *ServiceGroup:
		return "servicegroup"
	case *Endpoint:
		return "endpoint"
	case *Notification:
		return "notification"
	case *CheckCommand:
		return "checkcommand"
	case *NotificationCommand:
		return "notificationcommand"
	case *EventCommand:
		return "eventcommand"
	default:
		return ""
	}
}
