package authflow

// Route is a console navigation target. The gate only compares routes; it
// attaches no meaning to their text beyond identity.
type Route string

// Default route surface. Integrators with different paths override them via
// RoutesConfig.
const (
	RouteLogin          Route = "/login"
	RouteSignup         Route = "/signup"
	RouteForgotPassword Route = "/forgot-password"
	RouteChangePassword Route = "/change-password"
	RouteMFASetup       Route = "/mfa-setup"
	RouteHome           Route = "/"
)

// DecideRoute computes the single allowed route for the given auth state and
// requested route. It returns the redirect target and true, or the zero Route
// and false when the requested route may stand. The rules are evaluated in
// strict priority order; the function is pure and performs no I/O, so it can
// be re-run on every state or route change.
func DecideRoute(routes RoutesConfig, state State, setup SetupProgress, current Route) (Route, bool) {
	// 1. A forced password change pins navigation to the change-password
	// surface.
	if state.Kind == StateNewPasswordRequired {
		if current != routes.ChangePassword {
			return routes.ChangePassword, true
		}
		return "", false
	}

	// 2. Mandatory MFA enrollment pins navigation to the setup surface.
	if state.Kind == StateMFASetupRequired {
		if current != routes.MFASetup {
			return routes.MFASetup, true
		}
		return "", false
	}

	// 3. Code entry happens on the login surface.
	if state.Kind == StateMFARequired {
		if current != routes.Login {
			return routes.Login, true
		}
		return "", false
	}

	// 4. Everything non-public requires authentication.
	if !state.Authenticated() {
		if !routes.Public(current) {
			return routes.Login, true
		}
		return "", false
	}

	// 5. Authenticated users have no business on public surfaces.
	if routes.Public(current) {
		return routes.Home, true
	}

	// 6. No redirect.
	return "", false
}
