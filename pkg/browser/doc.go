// Package browser provides the page capability the work-item engine drives,
// backed by Playwright.
//
// # Architecture
//
// The package is built around three concepts:
//
//  1. Page: the capability surface (navigate, fill, click, wait, read, list)
//     the rest of the module depends on. Nothing outside this package imports
//     Playwright.
//  2. Session: one Playwright browser, context and page. A Session is the
//     run's session handle and is never shared between workers.
//  3. Manager: owns the Playwright driver and implements Launcher, which
//     acquires and releases sessions.
//
// # Session Lifecycle
//
//  1. Initialize: the Manager installs and starts the Playwright driver once
//  2. Acquire: launch a browser, create a context and a page
//  3. Use: the lander and item processor operate on Session.Page()
//  4. Release: close page, context and browser, ignoring close errors
//  5. Shutdown: stop the Playwright driver
//
// Retries are not handled here. The lander layers its retry budgets above
// Acquire/Release.
//
// # Example Usage
//
//	manager := browser.NewManager(browser.SessionOptions{Headless: false})
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	handle, err := manager.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer manager.Release(handle)
//
//	page := handle.Page()
//	err = page.Navigate("https://example.com/login", browser.NavigateOptions{
//	    WaitUntil: "networkidle",
//	})
package browser
