package domain

type App string

const (
	AppCalling   App = "calling"
	AppMessaging App = "messaging"
	AppCalendar  App = "calendar"
	AppAdmin     App = "admin"
)

var Apps = []App{AppCalling, AppMessaging, AppCalendar, AppAdmin}

// VisibleApps lists the home screen apps u may open, in display order.
// Calling and messaging are always listed; the contact policy gates who
// can be reached from them.
func VisibleApps(u User) []App {
	var apps []App
	for _, app := range Apps {
		switch app {
		case AppCalling, AppMessaging:
			apps = append(apps, app)
		case AppAdmin:
			if u.Can(CapOpenAdmin) {
				apps = append(apps, app)
			}
		default:
			if u.Can(CapAllApps) || u.HasApprovedApp(app) {
				apps = append(apps, app)
			}
		}
	}
	return apps
}
