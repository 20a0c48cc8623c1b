// Package browser drives real browsers through Playwright.
//
// A Launcher owns the Playwright driver and a single browser process. Each
// scenario asks it for a Session, which is a fresh browser context with one
// page, so state never leaks between scenarios.
//
// # Session Lifecycle
//
//  1. Start: the launcher runs the driver and launches the configured engine
//  2. Open: NewSession creates an isolated context, optionally tracing it
//  3. Use: page objects drive Session.Document() through the locator package
//  4. Close: Session.Close saves the trace archive and closes the context
//
// # Engine Boundary
//
// Document adapts a Playwright page to locator.Document. Criteria are turned
// into Playwright locators on every call, and Playwright timeouts are marked
// with locator.ErrDeadline so callers never import Playwright to classify
// errors.
package browser
