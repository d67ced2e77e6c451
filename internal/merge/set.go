package merge

import "sort"

func toStrSet(sl []string) map[string]struct{} {
	result := make(map[string]struct{}, len(sl))

	for _, elem := range sl {
		result[elem] = struct{}{}
	}

	return result
}

func intersect(a, b []string) []string {
	set := toStrSet(b)

	var result []string
	for _, elem := range a {
		if _, exists := set[elem]; exists {
			result = append(result, elem)
		}
	}

	return result
}

// appendUniqSorted adds the elements of add to sl and returns the sorted
// result without duplicates.
func appendUniqSorted(sl []string, add ...string) []string {
	set := toStrSet(sl)
	for _, elem := range add {
		set[elem] = struct{}{}
	}

	res := make([]string, 0, len(set))
	for k := range set {
		res = append(res, k)
	}

	sort.Strings(res)

	return res
}
