// Package script loads workflow definitions from HCL files and builds the
// corresponding action trees.
//
// A script file holds one or more workflow blocks:
//
//	workflow "checkout" {
//	  priority      = 5
//	  continue_with = "receipt"
//
//	  step "open" {
//	    action = "navigate"
//	    url    = "https://shop.example/cart"
//	  }
//
//	  when "cookie banner" {
//	    locator = "css:.cookie-banner"
//	    then {
//	      step "dismiss" {
//	        action  = "click"
//	        locator = "css:.accept"
//	      }
//	    }
//	  }
//	}
//
// Steps and when blocks execute in source order. The action kinds a step may
// name come from a Registry, so callers can add their own kinds next to the
// built-in ones.
package script
