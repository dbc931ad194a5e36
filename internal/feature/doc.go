// Package feature composes independently written pdfdesk features into one
// running application.
//
// A Feature declares a name, a version and the names of the features it
// depends on. The Runner resolves an install order in which every
// dependency precedes its dependents, installs features one at a time in
// that order and uninstalls them in exactly the reverse order.
//
// Each feature receives a Context bundling a ScopedBus namespaced to the
// feature's name, the global Bus, a logger labelled with the feature name,
// the shared application Container and a Disposer. After Uninstall returns
// the runner destroys the scoped bus and runs the disposer, so subscriptions
// a feature forgot to release are still dropped.
//
// # States
//
//	Unregistered → Registered → Installing → Installed → Uninstalling → Uninstalled
//	                                 └──────→ Failed
//
// A feature never stays in Installing: a failed or timed-out install moves it
// to Failed and the failure is reported in the InstallResult.
package feature
