// Package e2e holds the browser journeys run against a live deployment.
//
// The tests only build with the e2e tag and read their settings from the
// project's flowcheck.yaml and .env:
//
//	go test -tags e2e ./e2e -v -args -headed -browser=firefox
package e2e
