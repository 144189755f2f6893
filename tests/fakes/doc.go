// Package fakes provides test doubles for secretchain provider interfaces.
//
// This package contains fake implementations of the provider client contract
// and of the vendor API surfaces the real clients are built on, so providers
// and the resolver can be unit tested without real service dependencies.
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	fake := fakes.NewFakeInfisicalAPI()
//	fake.SetSecret("proj-1", "/", "API_KEY", "secret123")
//	client := providers.NewInfisicalProviderWithAPI(fake)
//	// Test client methods...
package fakes
