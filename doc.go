// Package doclient is the client side session and resource state layer for
// the document management backend.
//
// Session:
//   - Session owns the bearer token and the user profile. Token absent
//     implies profile absent; Logout and teardown clear both at once and
//     remove the token from the TokenStore.
//   - Login persists the token, Restore loads it back in a later process.
//     FetchIdentity refreshes the profile and logs the session out when the
//     refresh fails. A refresh started before a newer login is discarded.
//   - ChangePassword and UpdateProfile edit the current account.
//
// Transport:
//   - Every call goes through Interceptor, an http.RoundTripper that attaches
//     "Authorization: Bearer <token>" read from the session at call time and
//     tears the session down when the backend answers 401. The caller still
//     receives the unchanged failure.
//
// Resource stores:
//   - DocumentStore and CategoryStore cache one collection each, with
//     pagination, a loading flag and the display message of the last failure.
//     A list field that is not an array becomes an empty list; array
//     elements are kept even when some of their fields do not decode. List results are tagged with
//     a generation so an older response never overwrites a newer one.
//   - Failed mutations are sorted into three buckets (see Classify): the
//     server answered with an error status, no response arrived, or the
//     request could not be built.
//
// Guard:
//   - Decide maps route metadata and the session predicates to an allow or a
//     redirect. Guard.Check also signals the redirect through the Navigator
//     and, for admin routes, loads the profile of a restored session first.
package doclient
