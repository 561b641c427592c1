// Package thankyou provides headless feedback widgets that report to a
// feedback backend.
//
// Two widgets are available:
//  1. ThankYouButton - a reaction button. Clicks are coalesced: a burst of
//     clicks produces a single report once the user stops clicking for the
//     inactivity delay (1s by default).
//  2. MessageButton - a toggleable text box whose content is sent at once,
//     followed by a short confirmation banner.
//
// Widgets attach to mount points declared in a registry.Registry and render
// through a component.Presenter. Both are host concerns: the library only
// owns widget state and reporting.
//
// Delivery is fire-and-forget and at most once. A report that fails in
// transit is logged and dropped, never retried.
package thankyou
